package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// EAPOL packet types.
const (
	EAPOLTypeEAPPacket uint8 = 0
	EAPOLTypeStart     uint8 = 1
	EAPOLTypeLogoff    uint8 = 2
	EAPOLTypeKey       uint8 = 3
	EAPOLTypeASFAlert  uint8 = 4
)

// EAPOL key descriptor types.
const (
	EAPOLDescRC4 uint8 = 1
	EAPOLDescRSN uint8 = 2
	EAPOLDescWPA uint8 = 254
)

// RSN-EAPOL key-info flag bits.
const (
	EAPOLKeyTypePairwise uint16 = 1 << 3
	EAPOLKeyInstall      uint16 = 1 << 6
	EAPOLKeyACK          uint16 = 1 << 7
	EAPOLKeyMIC          uint16 = 1 << 8
	EAPOLKeySecure       uint16 = 1 << 9
	EAPOLKeyError        uint16 = 1 << 10
	EAPOLKeyRequest      uint16 = 1 << 11
	EAPOLKeyEncrypted    uint16 = 1 << 12
)

const eapolCommonSize = 4

// ParseEAPOL dissects an EAPOL frame, selecting the RC4 or RSN key
// descriptor by the type byte after the common header.
func ParseEAPOL(data []byte) (pdu.PDU, error) {
	if len(data) < eapolCommonSize+1 {
		return nil, fmt.Errorf("%w: eapol header", pdu.ErrMalformed)
	}
	switch data[eapolCommonSize] {
	case EAPOLDescRC4:
		return ParseEAPOLRC4(data)
	case EAPOLDescRSN, EAPOLDescWPA:
		return ParseEAPOLRSN(data)
	}
	return nil, fmt.Errorf("%w: eapol descriptor type %d", pdu.ErrMalformed, data[eapolCommonSize])
}

// EAPOLRSN is an EAPOL-Key frame with the RSN (802.11i) key
// descriptor. The common-header length field is recomputed on
// serialization; unexplained trailing bytes survive as a Raw child.
type EAPOLRSN struct {
	pdu.Base
	Version       uint8
	PacketType    uint8
	DescriptorTyp uint8
	KeyInfo       uint16
	KeyLength     uint16
	ReplayCounter uint64
	Nonce         [32]byte
	KeyIV         [16]byte
	RSC           [8]byte
	KeyID         [8]byte
	MIC           [16]byte
	KeyData       []byte

	wireLength uint16
}

const eapolRSNBodySize = 1 + 2 + 2 + 8 + 32 + 16 + 8 + 8 + 16 + 2

// NewEAPOLRSN builds an EAPOL-Key frame with the RSN descriptor.
func NewEAPOLRSN() *EAPOLRSN {
	return &EAPOLRSN{Version: 1, PacketType: EAPOLTypeKey, DescriptorTyp: EAPOLDescRSN}
}

// ParseEAPOLRSN dissects an RSN-EAPOL key frame.
func ParseEAPOLRSN(data []byte) (*EAPOLRSN, error) {
	if len(data) < eapolCommonSize+eapolRSNBodySize {
		return nil, fmt.Errorf("%w: rsn eapol frame", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	e := &EAPOLRSN{}
	e.Version, _ = in.ReadU8()
	e.PacketType, _ = in.ReadU8()
	e.wireLength, _ = in.ReadU16()
	e.DescriptorTyp, _ = in.ReadU8()
	e.KeyInfo, _ = in.ReadU16()
	e.KeyLength, _ = in.ReadU16()
	e.ReplayCounter, _ = in.ReadU64()
	b, _ := in.ReadBytes(32)
	copy(e.Nonce[:], b)
	b, _ = in.ReadBytes(16)
	copy(e.KeyIV[:], b)
	b, _ = in.ReadBytes(8)
	copy(e.RSC[:], b)
	b, _ = in.ReadBytes(8)
	copy(e.KeyID[:], b)
	b, _ = in.ReadBytes(16)
	copy(e.MIC[:], b)
	wpaLen, _ := in.ReadU16()
	if !in.CanRead(int(wpaLen)) {
		return nil, fmt.Errorf("%w: rsn eapol key data length %d", pdu.ErrMalformed, wpaLen)
	}
	kd, _ := in.ReadBytes(int(wpaLen))
	e.KeyData = append([]byte{}, kd...)
	// Preserve unknown trailers rather than discarding them.
	if in.Remaining() > 0 {
		pdu.Adopt(e, pdu.NewRaw(in.Peek()))
	}
	return e, nil
}

func (e *EAPOLRSN) Type() pdu.Type { return pdu.TypeEAPOLRSN }

func (e *EAPOLRSN) HeaderSize() int {
	return eapolCommonSize + eapolRSNBodySize + len(e.KeyData)
}

func (e *EAPOLRSN) Clone() pdu.PDU {
	c := *e
	c.Base = pdu.Base{}
	c.KeyData = append([]byte{}, e.KeyData...)
	pdu.Adopt(&c, e.CloneChild())
	return &c
}

func (e *EAPOLRSN) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:e.HeaderSize()])
	out.WriteU8(e.Version)
	out.WriteU8(e.PacketType)
	// Length counts everything after the common header.
	e.wireLength = uint16(eapolRSNBodySize + len(e.KeyData))
	out.WriteU16(e.wireLength)
	out.WriteU8(e.DescriptorTyp)
	out.WriteU16(e.KeyInfo)
	out.WriteU16(e.KeyLength)
	out.WriteU64(e.ReplayCounter)
	out.WriteBytes(e.Nonce[:])
	out.WriteBytes(e.KeyIV[:])
	out.WriteBytes(e.RSC[:])
	out.WriteBytes(e.KeyID[:])
	out.WriteBytes(e.MIC[:])
	out.WriteU16(uint16(len(e.KeyData)))
	return out.WriteBytes(e.KeyData)
}

// EAPOLRC4 is an EAPOL-Key frame with the legacy RC4 key descriptor.
type EAPOLRC4 struct {
	pdu.Base
	Version       uint8
	PacketType    uint8
	DescriptorTyp uint8
	KeyLength     uint16
	ReplayCounter uint64
	KeyIV         [16]byte
	KeyFlag       bool // broadcast/unicast flag, high bit of the index byte
	KeyIndex      uint8
	Signature     [16]byte
	Key           []byte

	wireLength uint16
}

const eapolRC4BodySize = 1 + 2 + 8 + 16 + 1 + 16

// NewEAPOLRC4 builds an EAPOL-Key frame with the RC4 descriptor.
func NewEAPOLRC4() *EAPOLRC4 {
	return &EAPOLRC4{Version: 1, PacketType: EAPOLTypeKey, DescriptorTyp: EAPOLDescRC4}
}

// ParseEAPOLRC4 dissects an RC4-EAPOL key frame. The key occupies the
// remainder of the declared length.
func ParseEAPOLRC4(data []byte) (*EAPOLRC4, error) {
	if len(data) < eapolCommonSize+eapolRC4BodySize {
		return nil, fmt.Errorf("%w: rc4 eapol frame", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	e := &EAPOLRC4{}
	e.Version, _ = in.ReadU8()
	e.PacketType, _ = in.ReadU8()
	e.wireLength, _ = in.ReadU16()
	e.DescriptorTyp, _ = in.ReadU8()
	e.KeyLength, _ = in.ReadU16()
	e.ReplayCounter, _ = in.ReadU64()
	b, _ := in.ReadBytes(16)
	copy(e.KeyIV[:], b)
	idx, _ := in.ReadU8()
	e.KeyFlag = idx&0x80 != 0
	e.KeyIndex = idx & 0x7F
	b, _ = in.ReadBytes(16)
	copy(e.Signature[:], b)
	keyLen := int(e.wireLength) - eapolRC4BodySize
	if keyLen < 0 || !in.CanRead(keyLen) {
		return nil, fmt.Errorf("%w: rc4 eapol length %d", pdu.ErrMalformed, e.wireLength)
	}
	k, _ := in.ReadBytes(keyLen)
	e.Key = append([]byte{}, k...)
	if in.Remaining() > 0 {
		pdu.Adopt(e, pdu.NewRaw(in.Peek()))
	}
	return e, nil
}

func (e *EAPOLRC4) Type() pdu.Type { return pdu.TypeEAPOLRC4 }

func (e *EAPOLRC4) HeaderSize() int {
	return eapolCommonSize + eapolRC4BodySize + len(e.Key)
}

func (e *EAPOLRC4) Clone() pdu.PDU {
	c := *e
	c.Base = pdu.Base{}
	c.Key = append([]byte{}, e.Key...)
	pdu.Adopt(&c, e.CloneChild())
	return &c
}

func (e *EAPOLRC4) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:e.HeaderSize()])
	out.WriteU8(e.Version)
	out.WriteU8(e.PacketType)
	e.wireLength = uint16(eapolRC4BodySize + len(e.Key))
	out.WriteU16(e.wireLength)
	out.WriteU8(e.DescriptorTyp)
	out.WriteU16(e.KeyLength)
	out.WriteU64(e.ReplayCounter)
	out.WriteBytes(e.KeyIV[:])
	idx := e.KeyIndex & 0x7F
	if e.KeyFlag {
		idx |= 0x80
	}
	out.WriteU8(idx)
	out.WriteBytes(e.Signature[:])
	return out.WriteBytes(e.Key)
}

func init() {
	pdu.RegisterEtherType(EtherTypeEAPOL, pdu.TypeEAPOLRSN, ParseEAPOL)
	pdu.RegisterEtherType(EtherTypeEAPOL, pdu.TypeEAPOLRC4, ParseEAPOL)
}
