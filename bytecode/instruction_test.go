package bytecode

import "testing"

func TestCreateABCRoundTrip(t *testing.T) {
	i := Create(OpAdd, 1, 2, 3, true)
	if i.Op() != OpAdd {
		t.Fatalf("op = %v, want ADD", i.Op())
	}
	if i.A() != 1 || i.B() != 2 || i.C() != 3 || !i.K() {
		t.Fatalf("fields = %d %d %d %v, want 1 2 3 true", i.A(), i.B(), i.C(), i.K())
	}
}

func TestCreateABxRoundTrip(t *testing.T) {
	i := CreateABx(OpLoadK, 5, 12345)
	if i.Op() != OpLoadK || i.A() != 5 || i.Bx() != 12345 {
		t.Fatalf("got op=%v a=%d bx=%d", i.Op(), i.A(), i.Bx())
	}
}

func TestCreateAsBxRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 65535, -65535} {
		i := CreateAsBx(OpLoadI, 0, v)
		if got := i.SBx(); got != v {
			t.Fatalf("sbx round trip: got %d want %d", got, v)
		}
	}
}

func TestCreateSJRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1000, -1000} {
		i := CreateSJ(OpJmp, v)
		if got := i.SJ(); got != v {
			t.Fatalf("sj round trip: got %d want %d", got, v)
		}
	}
}

func TestOpCodeString(t *testing.T) {
	if OpAdd.String() != "ADD" {
		t.Fatalf("got %s", OpAdd.String())
	}
}

func TestIsTest(t *testing.T) {
	if !IsTest(OpEq) || IsTest(OpAdd) {
		t.Fatal("IsTest classification wrong")
	}
}

func TestLineInfoResolution(t *testing.T) {
	li := LineInfo{
		Lines:        []int8{0, 1, 0, 2},
		AbsLines:     []AbsLine{{PC: 0, Line: 10}},
		AbsLineEvery: 128,
	}
	if got := li.Line(0); got != 10 {
		t.Fatalf("pc0 = %d, want 10", got)
	}
	if got := li.Line(3); got != 13 {
		t.Fatalf("pc3 = %d, want 13", got)
	}
}
