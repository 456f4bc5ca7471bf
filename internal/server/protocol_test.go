package server

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Request
		wantErr error
	}{
		{
			name: "join existing",
			raw:  `{"type":"create_or_join","payload":{"name":"Bob","session_id":"abc123","as_host":true}}`,
			want: JoinRequest{Name: "Bob", SessionID: "abc123", AsHost: true},
		},
		{
			name: "create without payload",
			raw:  `{"type":"create_or_join"}`,
			want: JoinRequest{},
		},
		{
			name: "add item",
			raw:  `{"type":"add_item","payload":{"session_id":"s","title":"Login flow","description":"OAuth"}}`,
			want: AddItemRequest{SessionID: "s", Title: "Login flow", Description: "OAuth"},
		},
		{
			name: "reveal",
			raw:  `{"type":"set_reveal","payload":{"session_id":"s","reveal":true}}`,
			want: RevealRequest{SessionID: "s", Reveal: true},
		},
		{name: "not json", raw: `{`, wantErr: ErrMalformedPayload},
		{name: "unknown type", raw: `{"type":"chat","payload":{}}`, wantErr: ErrUnknownType},
		{name: "outbound type", raw: `{"type":"joined","payload":{}}`, wantErr: ErrUnknownType},
		{name: "payload wrong shape", raw: `{"type":"add_item","payload":[1,2]}`, wantErr: ErrMalformedPayload},
		{name: "add item without title", raw: `{"type":"add_item","payload":{"session_id":"s"}}`, wantErr: ErrMalformedPayload},
		{name: "add item without session", raw: `{"type":"add_item","payload":{"title":"t"}}`, wantErr: ErrMalformedPayload},
		{name: "vote without client", raw: `{"type":"vote","payload":{"session_id":"s","item_id":"i","vote":"3"}}`, wantErr: ErrMalformedPayload},
		{name: "vote null", raw: `{"type":"vote","payload":{"session_id":"s","item_id":"i","client_id":"c","vote":null}}`, wantErr: ErrMalformedPayload},
		{name: "vote missing", raw: `{"type":"vote","payload":{"session_id":"s","item_id":"i","client_id":"c"}}`, wantErr: ErrMalformedPayload},
		{name: "reveal without session", raw: `{"type":"set_reveal","payload":{"reveal":true}}`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeVoteKeepsValueOpaque(t *testing.T) {
	for _, vote := range []string{`"5"`, `13`, `{"points":3,"note":"risky"}`, `["?"]`, `false`} {
		raw := `{"type":"vote","payload":{"session_id":"s","item_id":"i","client_id":"c","vote":` + vote + `}}`
		req, err := DecodeRequest([]byte(raw))
		if err != nil {
			t.Fatalf("vote %s: %v", vote, err)
		}
		v, ok := req.(VoteRequest)
		if !ok {
			t.Fatalf("vote %s decoded as %T", vote, req)
		}
		if string(v.Vote) != vote {
			t.Errorf("vote = %s, want %s", v.Vote, vote)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	raw, err := EncodeFrame(TypeVoteUpdate, VoteUpdatePayload{
		ItemID: "i1",
		Votes:  map[string]json.RawMessage{"c1": json.RawMessage(`"3"`)},
	})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	want := `{"type":"vote_update","payload":{"item_id":"i1","votes":{"c1":"3"}}}`
	if string(raw) != want {
		t.Errorf("frame = %s, want %s", raw, want)
	}
}
