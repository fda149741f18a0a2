package canonicalize

import (
	"bytes"
	"encoding/json"
	"testing"
)

func FuzzJCS(f *testing.F) {
	f.Add([]byte(`{"a":1,"b":2}`))
	f.Add([]byte(`{"z":{"y":"foo","x":"bar"},"a":1}`))
	f.Add([]byte(`{"html":"<script>alert('xss')</script> &"}`))
	f.Add([]byte(`{"num":123.456,"bool":true,"null":null}`))
	f.Add([]byte(`{"arr":[3,1,2],"nested":{"deep":{"key":"val"}}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"unicode":"こんにちは","emoji":"🚀"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			t.Skip("invalid JSON input")
			return
		}

		b1, err := JCS(v)
		if err != nil {
			return
		}
		b2, err := JCS(v)
		if err != nil {
			t.Fatal("JCS returned error on second call but not first")
		}
		if !bytes.Equal(b1, b2) {
			t.Fatalf("non-deterministic output: %s vs %s", b1, b2)
		}

		// Canonical output must itself be a fixed point.
		var again any
		if err := json.Unmarshal(b1, &again); err != nil {
			t.Fatalf("canonical output is not valid JSON: %v", err)
		}
		b3, err := JCS(again)
		if err != nil {
			t.Fatalf("JCS failed on canonical output: %v", err)
		}
		if !bytes.Equal(b1, b3) {
			t.Fatalf("canonical form not idempotent: %s vs %s", b1, b3)
		}
	})
}
