package wire_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/wire"
)

func TestSQEEncodeDecodeRoundTrip(t *testing.T) {
	in := wire.SQE{
		Opcode: wire.OpRead,
		Fused:  0x1,
		CmdID:  0x1234,
		NSID:   1,
		MPTR:   0xaabbccdd,
		PRP1:   0x1000,
		PRP2:   0x2000,
		CDW10:  10,
		CDW11:  11,
		CDW12:  12,
		CDW13:  13,
		CDW14:  14,
		CDW15:  15,
	}
	var buf [wire.SQESize]byte
	in.Encode(buf[:])
	out := wire.DecodeSQE(buf[:])
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestCQEEncodeDecodeRoundTrip(t *testing.T) {
	in := wire.CQE{
		CmdSpecific: 0xcafef00d,
		SQHead:      3,
		SQID:        1,
		CmdID:       42,
		Phase:       true,
		Status:      0x0141, // SCT=1 | SC=0x41, already phase-stripped
	}
	var buf [wire.CQESize]byte
	wire.EncodeCQE(in, buf[:])
	out := wire.DecodeCQE(buf[:])
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestCQEStatusAccessors(t *testing.T) {
	c := wire.CQE{Status: 0x6341} // DNR(1<<14) | More(1<<13) | SCT=3 | SC=0x41
	if c.SC() != 0x41 {
		t.Fatalf("SC() = 0x%x, want 0x41", c.SC())
	}
	if c.SCT() != 0x3 {
		t.Fatalf("SCT() = 0x%x, want 0x3", c.SCT())
	}
	if !c.More() {
		t.Fatal("More() = false, want true")
	}
	if !c.DNR() {
		t.Fatal("DNR() = false, want true")
	}
}

func TestDecodeCapUnpacksFields(t *testing.T) {
	// MQES=0x3f, CQR=1, AMS=0, TO=0x0a, DSTRD=2, CSS=1, MPSMIN=0, MPSMAX=4
	var raw uint64
	raw |= 0x3f
	raw |= 1 << 16
	raw |= 0x0a << 24
	raw |= uint64(2) << 32
	raw |= uint64(1) << 37
	raw |= uint64(4) << 52

	decoded := wire.DecodeCap(raw)
	if decoded.MQES != 0x3f {
		t.Fatalf("MQES = %d, want 0x3f", decoded.MQES)
	}
	if !decoded.CQR {
		t.Fatal("CQR = false, want true")
	}
	if decoded.TO != 0x0a {
		t.Fatalf("TO = %d, want 0x0a", decoded.TO)
	}
	if decoded.DSTRD != 2 {
		t.Fatalf("DSTRD = %d, want 2", decoded.DSTRD)
	}
	if decoded.CSS != 1 {
		t.Fatalf("CSS = %d, want 1", decoded.CSS)
	}
	if decoded.MPSMAX != 4 {
		t.Fatalf("MPSMAX = %d, want 4", decoded.MPSMAX)
	}
}

func TestEncodeCCSetsExpectedFields(t *testing.T) {
	cc := wire.EncodeCC(true, 0)
	if cc&(1<<wire.CCEn) == 0 {
		t.Fatal("EN bit not set")
	}
	if (cc >> wire.CCIOSQES) & 0xF != 6 {
		t.Fatalf("IOSQES = %d, want 6", (cc>>wire.CCIOSQES)&0xF)
	}
	if (cc >> wire.CCIOCQES) & 0xF != 4 {
		t.Fatalf("IOCQES = %d, want 4", (cc>>wire.CCIOCQES)&0xF)
	}

	disabled := wire.EncodeCC(false, 0)
	if disabled&(1<<wire.CCEn) != 0 {
		t.Fatal("EN bit set when enable=false")
	}
}

func TestCSTSHelpers(t *testing.T) {
	if !wire.CSTSReady(1 << wire.CSTSRdy) {
		t.Fatal("CSTSReady should report true when RDY bit set")
	}
	if wire.CSTSReady(0) {
		t.Fatal("CSTSReady should report false when RDY bit clear")
	}
	if !wire.CSTSFatal(1 << wire.CSTSCfs) {
		t.Fatal("CSTSFatal should report true when CFS bit set")
	}
}

func TestEncodeAQAPacksZeroBasedSizes(t *testing.T) {
	aqa := wire.EncodeAQA(64, 64)
	if aqa&0xFFF != 63 {
		t.Fatalf("ASQS = %d, want 63", aqa&0xFFF)
	}
	if (aqa>>16)&0xFFF != 63 {
		t.Fatalf("ACQS = %d, want 63", (aqa>>16)&0xFFF)
	}
}

func TestDoorbellOffsets(t *testing.T) {
	if got := wire.SQTailDoorbell(0, 0); got != 0x1000 {
		t.Fatalf("SQTailDoorbell(0,0) = 0x%x, want 0x1000", got)
	}
	if got := wire.CQHeadDoorbell(0, 0); got != 0x1004 {
		t.Fatalf("CQHeadDoorbell(0,0) = 0x%x, want 0x1004", got)
	}
	if got := wire.SQTailDoorbell(1, 0); got != 0x1008 {
		t.Fatalf("SQTailDoorbell(1,0) = 0x%x, want 0x1008", got)
	}
}
