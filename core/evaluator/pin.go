package evaluator

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
)

const pinDigits = 6

var (
	pinMax   = big.NewInt(1_000_000)
	pinRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

// generatePIN returns a random 6-digit PIN.
func generatePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}

// hashPIN returns the keyed digest under which a PIN is stored and looked up.
func hashPIN(secret, pin string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(pin))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidPIN reports whether pin has the shape of an evaluator PIN.
func ValidPIN(pin string) bool {
	return pinRegex.MatchString(pin)
}
