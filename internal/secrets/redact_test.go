package secrets

import "testing"

func TestRedactString_BearerToken(t *testing.T) {
	r := NewRedactor()
	out := r.RedactString("Authorization: Bearer abc123.def456-ghi")
	if out == "Authorization: Bearer abc123.def456-ghi" {
		t.Fatal("expected bearer token to be redacted")
	}
}

func TestRedactMap_SensitiveKey(t *testing.T) {
	r := NewRedactor()
	out := r.RedactMap(map[string]interface{}{
		"pin":     "1234",
		"command": "tr_login",
	})
	if out["pin"] != r.replacement {
		t.Errorf("expected pin to be redacted, got %v", out["pin"])
	}
	if out["command"] != "tr_login" {
		t.Errorf("expected command to survive unredacted, got %v", out["command"])
	}
}

func TestRedactJSON_NestedSecret(t *testing.T) {
	r := NewRedactor()
	body := []byte(`{"payload":{"pin":"9999","phone":"+491701234567"}}`)
	out, err := r.RedactJSON(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) == string(body) {
		t.Fatal("expected redacted JSON to differ from input")
	}
}
