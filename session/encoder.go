package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CurrentSchemaVersion is the first byte of every encoded session.
const CurrentSchemaVersion = 1

func Encode(s *Session) ([]byte, error) {
	if !s.Origin.valid() {
		return nil, errors.New("invalid session origin")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"userID", s.UserID},
		{"tenantID", s.TenantID},
		{"walletAddress", s.WalletAddress},
	} {
		if len(field.value) > 255 {
			return nil, fmt.Errorf("%s too long", field.name)
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	buf.WriteByte(byte(s.Origin))

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	if s.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.TenantID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.WalletAddress, err = readString(reader); err != nil {
		return nil, err
	}

	origin, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Origin = Origin(origin)
	if !s.Origin.valid() {
		return nil, errors.New("invalid session origin")
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session record")
	}

	return s, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
