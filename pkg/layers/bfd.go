package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// BFD session states.
const (
	BFDStateAdminDown uint8 = 0
	BFDStateDown      uint8 = 1
	BFDStateInit      uint8 = 2
	BFDStateUp        uint8 = 3
)

// BFD authentication types (RFC 5880 §4.1).
const (
	BFDAuthNone           uint8 = 0
	BFDAuthSimplePassword uint8 = 1
	BFDAuthKeyedMD5       uint8 = 2
	BFDAuthMeticulousMD5  uint8 = 3
	BFDAuthKeyedSHA1      uint8 = 4
	BFDAuthMeticulousSHA1 uint8 = 5
)

const (
	bfdMandatorySize  = 24
	bfdMaxPasswordLen = 16
	bfdMD5DigestLen   = 16
	bfdSHA1HashLen    = 20
)

// BFD is a BFD control packet (RFC 5880 §4). The length field covers
// the mandatory section plus the optional authentication section and
// is recomputed on serialization. Authentication setters enforce the
// active auth type.
type BFD struct {
	pdu.Base
	Version           uint8 // 3 bits
	Diagnostic        uint8 // 5 bits
	State             uint8 // 2 bits
	Poll              bool
	Final             bool
	ControlPlaneIndep bool
	Demand            bool
	Multipoint        bool
	DetectMult        uint8
	MyDiscriminator   uint32
	YourDiscriminator uint32
	DesiredMinTx      uint32
	RequiredMinRx     uint32
	RequiredMinEchoRx uint32

	authType  uint8
	AuthKeyID uint8
	authSeq   uint32 // MD5/SHA1 variants
	authValue []byte // password, digest or hash
}

// NewBFD builds a control packet with version 1 and detect multiplier
// 3.
func NewBFD() *BFD {
	return &BFD{Version: 1, DetectMult: 3}
}

// ParseBFD dissects a control packet, validating the length field and
// the authentication section sizes.
func ParseBFD(data []byte) (*BFD, error) {
	if len(data) < bfdMandatorySize {
		return nil, fmt.Errorf("%w: bfd mandatory section", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	b := &BFD{}
	b0, _ := in.ReadU8()
	b.Version = b0 >> 5
	b.Diagnostic = b0 & 0x1F
	b1, _ := in.ReadU8()
	b.State = b1 >> 6
	b.Poll = b1&0x20 != 0
	b.Final = b1&0x10 != 0
	b.ControlPlaneIndep = b1&0x08 != 0
	authPresent := b1&0x04 != 0
	b.Demand = b1&0x02 != 0
	b.Multipoint = b1&0x01 != 0
	b.DetectMult, _ = in.ReadU8()
	length, _ := in.ReadU8()
	if int(length) < bfdMandatorySize || int(length) > len(data) {
		return nil, fmt.Errorf("%w: bfd length %d", pdu.ErrMalformed, length)
	}
	b.MyDiscriminator, _ = in.ReadU32()
	b.YourDiscriminator, _ = in.ReadU32()
	b.DesiredMinTx, _ = in.ReadU32()
	b.RequiredMinRx, _ = in.ReadU32()
	b.RequiredMinEchoRx, _ = in.ReadU32()

	if authPresent {
		if err := b.parseAuth(data[bfdMandatorySize:length]); err != nil {
			return nil, err
		}
	}
	if int(length) < len(data) {
		pdu.Adopt(b, pdu.NewRaw(data[length:]))
	}
	return b, nil
}

func (b *BFD) parseAuth(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: bfd auth section", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	b.authType, _ = in.ReadU8()
	authLen, _ := in.ReadU8()
	if int(authLen) != len(data) {
		return fmt.Errorf("%w: bfd auth length %d", pdu.ErrMalformed, authLen)
	}
	switch b.authType {
	case BFDAuthSimplePassword:
		if len(data) < 4 || len(data) > 3+bfdMaxPasswordLen {
			return fmt.Errorf("%w: bfd password auth length", pdu.ErrMalformed)
		}
		b.AuthKeyID, _ = in.ReadU8()
		b.authValue = append([]byte{}, data[3:]...)
	case BFDAuthKeyedMD5, BFDAuthMeticulousMD5:
		if len(data) != 8+bfdMD5DigestLen {
			return fmt.Errorf("%w: bfd md5 auth length", pdu.ErrMalformed)
		}
		b.AuthKeyID, _ = in.ReadU8()
		in.Skip(1) // reserved
		b.authSeq, _ = in.ReadU32()
		b.authValue = append([]byte{}, data[8:]...)
	case BFDAuthKeyedSHA1, BFDAuthMeticulousSHA1:
		if len(data) != 8+bfdSHA1HashLen {
			return fmt.Errorf("%w: bfd sha1 auth length", pdu.ErrMalformed)
		}
		b.AuthKeyID, _ = in.ReadU8()
		in.Skip(1)
		b.authSeq, _ = in.ReadU32()
		b.authValue = append([]byte{}, data[8:]...)
	default:
		return fmt.Errorf("%w: bfd auth type %d", pdu.ErrMalformed, b.authType)
	}
	return nil
}

func (b *BFD) Type() pdu.Type { return pdu.TypeBFD }

func (b *BFD) HeaderSize() int { return bfdMandatorySize + b.authSize() }

func (b *BFD) authSize() int {
	switch b.authType {
	case BFDAuthSimplePassword:
		return 3 + len(b.authValue)
	case BFDAuthKeyedMD5, BFDAuthMeticulousMD5:
		return 8 + bfdMD5DigestLen
	case BFDAuthKeyedSHA1, BFDAuthMeticulousSHA1:
		return 8 + bfdSHA1HashLen
	}
	return 0
}

// AuthType returns the active authentication type.
func (b *BFD) AuthType() uint8 { return b.authType }

// SetAuthType selects the authentication section variant and clears
// any previously stored value.
func (b *BFD) SetAuthType(t uint8) error {
	switch t {
	case BFDAuthNone, BFDAuthSimplePassword,
		BFDAuthKeyedMD5, BFDAuthMeticulousMD5,
		BFDAuthKeyedSHA1, BFDAuthMeticulousSHA1:
		b.authType = t
		b.authValue = nil
		b.authSeq = 0
		return nil
	}
	return fmt.Errorf("%w: bfd auth type %d", pdu.ErrInvalidArgument, t)
}

// Password returns the simple-password auth value.
func (b *BFD) Password() ([]byte, error) {
	if b.authType != BFDAuthSimplePassword {
		return nil, fmt.Errorf("%w: auth type is not simple password", pdu.ErrLogic)
	}
	return b.authValue, nil
}

// SetPassword stores the simple password (1–16 bytes).
func (b *BFD) SetPassword(pw []byte) error {
	if b.authType != BFDAuthSimplePassword {
		return fmt.Errorf("%w: auth type is not simple password", pdu.ErrLogic)
	}
	if len(pw) == 0 || len(pw) > bfdMaxPasswordLen {
		return fmt.Errorf("%w: password length %d", pdu.ErrInvalidArgument, len(pw))
	}
	b.authValue = append([]byte{}, pw...)
	return nil
}

// AuthSequence returns the sequence number of a keyed auth section.
func (b *BFD) AuthSequence() (uint32, error) {
	if !b.keyedAuth() {
		return 0, fmt.Errorf("%w: auth type carries no sequence number", pdu.ErrLogic)
	}
	return b.authSeq, nil
}

// SetAuthSequence stores the sequence number of a keyed auth section.
func (b *BFD) SetAuthSequence(seq uint32) error {
	if !b.keyedAuth() {
		return fmt.Errorf("%w: auth type carries no sequence number", pdu.ErrLogic)
	}
	b.authSeq = seq
	return nil
}

// AuthValue returns the digest or hash of a keyed auth section.
func (b *BFD) AuthValue() ([]byte, error) {
	if !b.keyedAuth() {
		return nil, fmt.Errorf("%w: auth type carries no digest", pdu.ErrLogic)
	}
	return b.authValue, nil
}

// SetAuthValue stores the digest (16 bytes for MD5 variants) or hash
// (20 bytes for SHA1 variants).
func (b *BFD) SetAuthValue(v []byte) error {
	switch b.authType {
	case BFDAuthKeyedMD5, BFDAuthMeticulousMD5:
		if len(v) != bfdMD5DigestLen {
			return fmt.Errorf("%w: md5 digest length %d", pdu.ErrInvalidArgument, len(v))
		}
	case BFDAuthKeyedSHA1, BFDAuthMeticulousSHA1:
		if len(v) != bfdSHA1HashLen {
			return fmt.Errorf("%w: sha1 hash length %d", pdu.ErrInvalidArgument, len(v))
		}
	default:
		return fmt.Errorf("%w: auth type carries no digest", pdu.ErrLogic)
	}
	b.authValue = append([]byte{}, v...)
	return nil
}

func (b *BFD) keyedAuth() bool {
	switch b.authType {
	case BFDAuthKeyedMD5, BFDAuthMeticulousMD5, BFDAuthKeyedSHA1, BFDAuthMeticulousSHA1:
		return true
	}
	return false
}

func (b *BFD) Clone() pdu.PDU {
	c := *b
	c.Base = pdu.Base{}
	c.authValue = append([]byte{}, b.authValue...)
	pdu.Adopt(&c, b.CloneChild())
	return &c
}

func (b *BFD) WriteHeader(buf []byte, total int) error {
	hdr := b.HeaderSize()
	out := stream.NewOutput(buf[:hdr])
	out.WriteU8(b.Version<<5 | b.Diagnostic&0x1F)
	b1 := b.State << 6
	if b.Poll {
		b1 |= 0x20
	}
	if b.Final {
		b1 |= 0x10
	}
	if b.ControlPlaneIndep {
		b1 |= 0x08
	}
	if b.authType != BFDAuthNone {
		b1 |= 0x04
	}
	if b.Demand {
		b1 |= 0x02
	}
	if b.Multipoint {
		b1 |= 0x01
	}
	out.WriteU8(b1)
	out.WriteU8(b.DetectMult)
	out.WriteU8(uint8(hdr))
	out.WriteU32(b.MyDiscriminator)
	out.WriteU32(b.YourDiscriminator)
	out.WriteU32(b.DesiredMinTx)
	out.WriteU32(b.RequiredMinRx)
	if err := out.WriteU32(b.RequiredMinEchoRx); err != nil {
		return err
	}
	if b.authType == BFDAuthNone {
		return nil
	}
	out.WriteU8(b.authType)
	out.WriteU8(uint8(b.authSize()))
	out.WriteU8(b.AuthKeyID)
	if b.authType != BFDAuthSimplePassword {
		out.WriteU8(0) // reserved
		out.WriteU32(b.authSeq)
	}
	return out.WriteBytes(b.authValue)
}
