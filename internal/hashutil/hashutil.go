// Пакет hashutil — вычисление контрольного отпечатка содержимого.
// SHA-256 hex-дайджест используется для дедупликации, не для адресации.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256Hex потоково вычисляет SHA-256 hex-дайджест содержимого reader.
func SHA256Hex(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("ошибка вычисления SHA-256: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
