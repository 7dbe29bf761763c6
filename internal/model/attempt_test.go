package model

import (
	"encoding/json"
	"testing"
)

func TestSubmittedAnswerDecodesLeniently(t *testing.T) {
	const qid = "5b0e7c1e-9a57-4c43-9a39-2c0f3c8a1d10"
	tests := []struct {
		name string
		in   string
		want SubmittedAnswer
	}{
		{"valid", `{"question_id":"` + qid + `","selected_index":2}`, SubmittedAnswer{qid, 2}},
		{"numeric id", `{"question_id":12345,"selected_index":2}`, SubmittedAnswer{"", 2}},
		{"string index", `{"question_id":"` + qid + `","selected_index":"two"}`, SubmittedAnswer{qid, -1}},
		{"fractional index", `{"question_id":"` + qid + `","selected_index":1.5}`, SubmittedAnswer{qid, -1}},
		{"negative index", `{"question_id":"` + qid + `","selected_index":-3}`, SubmittedAnswer{qid, -1}},
		{"missing index", `{"question_id":"` + qid + `"}`, SubmittedAnswer{qid, -1}},
		{"not an object", `7`, SubmittedAnswer{"", -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SubmittedAnswer
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	var req SubmitExamRequest
	body := `{"answers":[{"question_id":"` + qid + `","selected_index":0},null,"x",{"question_id":false}]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal request: %v", err)
	}
	if len(req.Answers) != 4 || req.Answers[0] != (SubmittedAnswer{qid, 0}) {
		t.Fatalf("answers = %+v", req.Answers)
	}
}
