package proto

import (
	"encoding/json"
	"testing"
)

func TestRoomRefAcceptsObjectAndString(t *testing.T) {
	var obj RoomRef
	if err := json.Unmarshal([]byte(`{"roomId":"r1","name":"general"}`), &obj); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if obj.ID != "r1" || obj.Name != "general" {
		t.Fatalf("unexpected room: %+v", obj)
	}

	var str RoomRef
	if err := json.Unmarshal([]byte(`"general"`), &str); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if str.ID != "general" || str.Name != "general" {
		t.Fatalf("unexpected room: %+v", str)
	}

	var noName RoomRef
	if err := json.Unmarshal([]byte(`{"id":"r2"}`), &noName); err != nil {
		t.Fatalf("unmarshal id only: %v", err)
	}
	if noName.ID != "r2" || noName.Name != "r2" {
		t.Fatalf("unexpected room: %+v", noName)
	}
}

func TestUserChatroomsNulls(t *testing.T) {
	var resp UserChatrooms
	if err := json.Unmarshal([]byte(`{"chatrooms":null,"current_room":null}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Chatrooms != nil || resp.CurrentRoom != nil {
		t.Fatalf("expected nil fields, got %+v", resp)
	}

	if err := json.Unmarshal([]byte(`{"chatrooms":["a",{"roomId":"b","name":"B"}],"current_room":"b"}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Chatrooms) != 2 || resp.Chatrooms[1].Name != "B" || *resp.CurrentRoom != "b" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestParseInvite(t *testing.T) {
	inv, err := ParseInvite("http://localhost:8000/room/join/Ab3dE9xZ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inv.Code != "Ab3dE9xZ" || inv.URL == "" {
		t.Fatalf("unexpected invite: %+v", inv)
	}

	inv, err = ParseInvite(" Ab3dE9xZ ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inv.Code != "Ab3dE9xZ" || inv.URL != "" {
		t.Fatalf("unexpected invite: %+v", inv)
	}

	if _, err := ParseInvite("  "); err == nil {
		t.Fatalf("expected error for empty invite")
	}
}

func TestNormalizeInviteTimeLimit(t *testing.T) {
	for in, want := range map[string]string{"1d": InviteOneDay, "1W": InviteOneWeek, "forever": InviteForever, "1 day": InviteOneDay} {
		if got := NormalizeInviteTimeLimit(in); got != want {
			t.Errorf("NormalizeInviteTimeLimit(%q) = %q, want %q", in, got, want)
		}
		if !ValidInviteTimeLimit(NormalizeInviteTimeLimit(in)) {
			t.Errorf("expected %q to normalize to a valid limit", in)
		}
	}
	if ValidInviteTimeLimit("2 days") {
		t.Fatalf("expected 2 days to be invalid")
	}
}
