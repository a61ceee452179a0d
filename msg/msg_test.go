package msg

import (
	"testing"
)

type pose struct {
	X     float64 `cbor:"x"`
	Y     float64 `cbor:"y"`
	Theta float64 `cbor:"theta"`
	Frame string  `cbor:"frame"`
}

func TestCBORRoundTrip(t *testing.T) {
	support := CBOR[pose]()
	want := pose{X: 1.5, Y: -2.25, Theta: 0.75, Frame: "map"}

	native, err := support.ToNative(&want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	defer native.Release()

	got, ok := support.New().(*pose)
	if !ok {
		t.Fatalf("New returned %T, want *pose", support.New())
	}
	if err := support.FromNative(native, got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *got, want)
	}
}

func TestTypeNameFromGoType(t *testing.T) {
	support := CBOR[pose]()
	if support.TypeName() != "github.com/fastQM/rclmesh/msg.pose" {
		t.Fatalf("unexpected type name %q", support.TypeName())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	support := CBOR[pose]()
	native, err := support.ToNative(&pose{Frame: "odom"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	native.Release()
	native.Release()

	var decoded pose
	if err := support.FromNative(native, &decoded); err != ErrReleased {
		t.Fatalf("decode after release: got %v, want ErrReleased", err)
	}
}

func TestToNativeRejectsWrongType(t *testing.T) {
	support := CBOR[pose]()
	if _, err := support.ToNative("not a pose"); err == nil {
		t.Fatal("expected error encoding wrong type")
	}
}
