package api

import (
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	data, err := Encode(MatchFound, MatchFoundRequest{PartnerId: "cfv68irdrc3ifu3jn6bg"})
	if err != nil {
		t.Fatal(err)
	}
	in, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if in.T != MatchFound {
		t.Fatalf("type = %v, want %v", in.T, MatchFound)
	}
	rq := Unwrap[MatchFoundRequest](in.Payload)
	if rq == nil || rq.PartnerId != "cfv68irdrc3ifu3jn6bg" {
		t.Fatalf("payload = %+v", rq)
	}
}

func TestEmptyPayload(t *testing.T) {
	data, err := Encode(Searching, nil)
	if err != nil {
		t.Fatal(err)
	}
	in, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if in.T != Searching || len(in.Payload) != 0 {
		t.Fatalf("packet = %+v", in)
	}
}

func TestUnwrapMismatch(t *testing.T) {
	if rq := Unwrap[MatchFoundRequest]([]byte(`[1,2,3]`)); rq != nil {
		t.Fatalf("expected nil on a shape mismatch, got %+v", rq)
	}
}

func TestPacketTypeNames(t *testing.T) {
	if JoinQueue.String() != "JoinQueue" || Error.String() != "Error" {
		t.Error("wrong packet names")
	}
	if PT(255).String() == "" {
		t.Error("unknown packets should still render")
	}
}
