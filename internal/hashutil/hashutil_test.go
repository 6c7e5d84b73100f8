package hashutil

import (
	"strings"
	"testing"
)

// TestSHA256Hex проверяет дайджест на известном векторе.
func TestSHA256Hex(t *testing.T) {
	got, err := SHA256Hex(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("ошибка вычисления: %v", err)
	}

	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("ожидалось %s, получено %s", want, got)
	}
}

// TestSHA256Hex_Empty проверяет дайджест пустого потока.
func TestSHA256Hex_Empty(t *testing.T) {
	got, err := SHA256Hex(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ошибка вычисления: %v", err)
	}

	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("ожидалось %s, получено %s", want, got)
	}
}
