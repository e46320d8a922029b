package wire

import "github.com/protocolbuffers/protoscope"

// Dump renders raw wire bytes as human-readable protoscope text, for
// use in test failure messages and ad hoc debugging only — it is never
// called from the read/write hot path. Grounded on the same
// debugging role github.com/protocolbuffers/protoscope plays in the
// retrieval pack's hyperpb example (conformance-test readability).
func Dump(data []byte) (string, error) {
	return protoscope.Write(data, protoscope.WriterOptions{
		ExplicitWireTypes: true,
	})
}
