package pgnative

import (
	"crypto/md5"
	"fmt"

	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/pkg/types"
)

// authentication subtypes carried by AuthenticationRequest's leading int32,
// per spec.md §4.3 step 2.
const (
	authOK        int32 = 0
	authCleartext int32 = 3
	authMD5       int32 = 5
)

// authenticate drives the R/0, R/3, R/5 branches of the startup sequence.
// It is called in a loop from handshake until authOK is observed.
func (c *Connection) authenticate(subtype int32, reader *buffer.Reader) error {
	switch subtype {
	case authOK:
		return nil
	case authCleartext:
		password, ok := c.config.password()
		if !ok {
			return &ParameterError{Message: "server requires a password but none was configured"}
		}
		return c.sendPassword(password)
	case authMD5:
		salt, err := reader.GetBytes(4)
		if err != nil {
			return fmt.Errorf("pgnative: reading MD5 salt: %w", err)
		}
		password, ok := c.config.password()
		if !ok {
			return &ParameterError{Message: "server requires a password but none was configured"}
		}
		return c.sendPassword(hashMD5Password(c.config.user(), password, salt))
	default:
		return &ProtocolError{Message: fmt.Sprintf("unsupported authentication subtype %d", subtype)}
	}
}

// sendPassword writes a PasswordMessage carrying text, which is either the
// cleartext password or the "md5"-prefixed MD5 digest.
func (c *Connection) sendPassword(text string) error {
	c.writer.Start(types.ClientPassword)
	c.writer.AddString(text)
	c.writer.AddNullTerminate()
	return c.writer.End()
}

// hashMD5Password implements the PostgreSQL MD5 challenge-response:
// "md5" || lowerhex(md5(lowerhex(md5(password||user)) || salt)).
// Grounded on lib/pq's cn.auth/md5s.
func hashMD5Password(user, password string, salt []byte) string {
	return "md5" + md5Hex(md5Hex(password+user)+string(salt))
}

func md5Hex(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}
