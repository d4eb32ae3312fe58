package payments

import "testing"

func TestIntentIDFromClientSecret(t *testing.T) {
	id, err := intentIDFromClientSecret("pi_3abc_secret_xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pi_3abc" {
		t.Fatalf("expected pi_3abc, got %q", id)
	}
}

func TestIntentIDFromClientSecretRejectsGarbage(t *testing.T) {
	for _, secret := range []string{"", "pi_3abc", "_secret_xyz"} {
		if _, err := intentIDFromClientSecret(secret); err == nil {
			t.Fatalf("expected error for %q", secret)
		}
	}
}
