package directory

import "testing"

func TestSecretHash(t *testing.T) {
	got := secretHash("secret", "client", "Kakao_123")
	if got != "mr3Vk7Amrtr97ZwmSwv/thm/CkwgaDjaEaZQQzN9sE8=" {
		t.Fatalf("unexpected secret hash %q", got)
	}
}

func TestPasswordFor(t *testing.T) {
	if got := passwordFor("", "Kakao_123"); got != "Kakao_123123!" {
		t.Fatalf("legacy password mismatch: %q", got)
	}
	if got := passwordFor("pw", "Kakao_123"); got != "o8CNvgU1z2_Am2MLzh1hqGwEVaEuf4u_lkTNanOEMZcAa1!" {
		t.Fatalf("keyed password mismatch: %q", got)
	}
}
