package validate

import (
	"errors"
	"testing"
)

func TestBootnodeRequiresP2PComponent(t *testing.T) {
	if _, err := Bootnode("/ip4/1.2.3.4/tcp/30333"); !errors.Is(err, ErrInvalidBootnode) {
		t.Fatalf("err = %v, want ErrInvalidBootnode", err)
	}
}

func TestBootnodeAcceptsValidMultiaddr(t *testing.T) {
	_, err := Bootnode("/ip4/1.2.3.4/tcp/30333/p2p/12D3KooWEdsXX9657ppNqqrrwLi52ixqRhKQqCENhtBodBDiGJJ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenesisHashAcceptsWithAndWithoutPrefix(t *testing.T) {
	const hash = "91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"

	if _, err := GenesisHash(hash); err != nil {
		t.Errorf("unprefixed: %v", err)
	}
	if _, err := GenesisHash("0x" + hash); err != nil {
		t.Errorf("prefixed: %v", err)
	}
}

func TestGenesisHashRejectsWrongLength(t *testing.T) {
	if _, err := GenesisHash("0xabcd"); !errors.Is(err, ErrInvalidGenesisHash) {
		t.Fatalf("err = %v, want ErrInvalidGenesisHash", err)
	}
}

func TestAddressFormatKnownAndUnknown(t *testing.T) {
	if v, err := AddressFormat("polkadot"); err != nil || v != 0 {
		t.Errorf("polkadot: v=%d err=%v", v, err)
	}
	if _, err := AddressFormat("not-a-network"); !errors.Is(err, ErrInvalidAddressFormat) {
		t.Fatalf("err = %v, want ErrInvalidAddressFormat", err)
	}
}
