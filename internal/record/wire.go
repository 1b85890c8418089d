package record

// Wire encoding for the authority-discovery-v2 protobuf schema:
//
//	message AuthorityRecord {
//	    repeated bytes addresses = 1;
//	}
//	message PeerSignature {
//	    bytes public_key = 1;
//	    bytes signature  = 2;
//	}
//	message SignedAuthorityRecord {
//	    bytes record               = 1;
//	    bytes auth_signature       = 2;
//	    PeerSignature peer_signature = 3;
//	}
//
// No .proto/protoc toolchain is available in this environment, so these
// two messages are encoded/decoded directly against the wire format
// using google.golang.org/protobuf's low-level protowire package —
// the same library a generated pb.go would depend on, just without
// codegen. Field numbers and wire types match the real Substrate
// authority-discovery-v2 schema (DESIGN.md).

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// AuthorityRecord carries the ordered list of raw multi-address byte
// strings published for a single authority.
type AuthorityRecord struct {
	Addresses [][]byte
}

// Marshal encodes an AuthorityRecord to its protobuf wire form.
func (r *AuthorityRecord) Marshal() []byte {
	var b []byte
	for _, addr := range r.Addresses {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, addr)
	}
	return b
}

// UnmarshalAuthorityRecord decodes an AuthorityRecord from its wire form.
func UnmarshalAuthorityRecord(data []byte) (*AuthorityRecord, error) {
	rec := &AuthorityRecord{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("authority record: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("authority record: bad addresses field: %w", protowire.ParseError(n))
			}
			addr := make([]byte, len(v))
			copy(addr, v)
			rec.Addresses = append(rec.Addresses, addr)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("authority record: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return rec, nil
}

// PeerSignature binds a record to the identity of the peer that
// published it, independent of the authority's own signature.
type PeerSignature struct {
	PublicKey []byte
	Signature []byte
}

// SignedAuthorityRecord is the DHT value: an opaque encoded
// AuthorityRecord plus the authority signature over it and an
// optional peer signature.
type SignedAuthorityRecord struct {
	Record        []byte
	AuthSignature []byte
	PeerSignature *PeerSignature
}

// Marshal encodes a SignedAuthorityRecord to its protobuf wire form.
func (s *SignedAuthorityRecord) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, s.Record)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, s.AuthSignature)
	if s.PeerSignature != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, s.PeerSignature.marshal())
	}
	return b
}

func (p *PeerSignature) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, p.PublicKey)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, p.Signature)
	return b
}

// UnmarshalSignedAuthorityRecord decodes a SignedAuthorityRecord from
// its wire form.
func UnmarshalSignedAuthorityRecord(data []byte) (*SignedAuthorityRecord, error) {
	out := &SignedAuthorityRecord{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("signed record: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("signed record: bad record field: %w", protowire.ParseError(n))
			}
			out.Record = append([]byte(nil), v...)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("signed record: bad auth_signature field: %w", protowire.ParseError(n))
			}
			out.AuthSignature = append([]byte(nil), v...)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("signed record: bad peer_signature field: %w", protowire.ParseError(n))
			}
			ps, err := unmarshalPeerSignature(v)
			if err != nil {
				return nil, err
			}
			out.PeerSignature = ps
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("signed record: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return out, nil
}

func unmarshalPeerSignature(data []byte) (*PeerSignature, error) {
	ps := &PeerSignature{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("peer signature: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("peer signature: bad public_key field: %w", protowire.ParseError(n))
			}
			ps.PublicKey = append([]byte(nil), v...)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("peer signature: bad signature field: %w", protowire.ParseError(n))
			}
			ps.Signature = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("peer signature: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return ps, nil
}
