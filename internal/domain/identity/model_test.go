package identity

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestPatient_Summary(t *testing.T) {
	phone := "+91-98450-00000"
	blood := "O+"
	p := &Patient{
		ID:          uuid.New(),
		PatientCode: "PAT-0042",
		FirstName:   "Asha",
		LastName:    "Rao",
		Phone:       &phone,
		BloodGroup:  &blood,
	}

	s := p.Summary()
	if s.ID != p.ID || s.Code != "PAT-0042" || s.FirstName != "Asha" || s.LastName != "Rao" {
		t.Fatalf("unexpected summary %+v", s)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	_ = json.Unmarshal(raw, &fields)
	for _, key := range []string{"id", "code", "firstName", "lastName", "phone", "bloodGroup"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected key %q in %s", key, raw)
		}
	}
	if _, ok := fields["allergies"]; ok {
		t.Error("nil allergies should be omitted")
	}
}

func TestPatient_FullName(t *testing.T) {
	p := &Patient{FirstName: "Asha", LastName: "Rao"}
	if p.FullName() != "Asha Rao" {
		t.Errorf("expected 'Asha Rao', got %q", p.FullName())
	}
	if (&Patient{FirstName: "Asha"}).FullName() != "Asha" {
		t.Error("expected trailing space to be trimmed")
	}
}
