package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSecretStringRedaction(t *testing.T) {
	secret := SecretString("super-secret-api-key")

	if got := secret.String(); strings.Contains(got, "super-secret") {
		t.Errorf("String() leaked the secret: %q", got)
	}
	if got := fmt.Sprintf("%v", secret); strings.Contains(got, "super-secret") {
		t.Errorf("Sprintf leaked the secret: %q", got)
	}

	raw, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: secret})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "super-secret") {
		t.Errorf("MarshalJSON leaked the secret: %s", raw)
	}

	if secret.Unmask() != "super-secret-api-key" {
		t.Error("Unmask() must return the raw value")
	}
}
