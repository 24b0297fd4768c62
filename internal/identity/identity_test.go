package identity

import "testing"

func TestParseTOMLValue(t *testing.T) {
	if id, err := ParseTOMLValue(nil); err != nil || id != Root {
		t.Errorf("nil: got (%v, %v), want (Root, nil)", id, err)
	}

	id, err := ParseTOMLValue(int64(1000))
	if err != nil || id.IsName() || id.UID() != 1000 {
		t.Errorf("int64(1000): got (%v, %v)", id, err)
	}

	id, err = ParseTOMLValue("nobody")
	if err != nil || !id.IsName() || id.String() != "nobody" {
		t.Errorf("string name: got (%v, %v)", id, err)
	}

	id, err = ParseTOMLValue("1001")
	if err != nil || id.IsName() || id.UID() != 1001 {
		t.Errorf("numeric string: got (%v, %v)", id, err)
	}

	if _, err := ParseTOMLValue(int64(-1)); err == nil {
		t.Error("negative uid should error")
	}

	if _, err := ParseTOMLValue(3.14); err == nil {
		t.Error("unsupported type should error")
	}
}

func TestSuFlag(t *testing.T) {
	if FromUID(0).SuFlag() != "--uid" {
		t.Error("uid identity should use --uid")
	}

	if FromName("x").SuFlag() != "-u" {
		t.Error("name identity should use -u")
	}
}

func TestString(t *testing.T) {
	if FromUID(42).String() != "42" {
		t.Error("uid identity should stringify as decimal")
	}

	if FromName("svc").String() != "svc" {
		t.Error("name identity should stringify verbatim")
	}
}
