package rabbitmq

import "testing"

func TestDecodeJobMessage(t *testing.T) {
	m, err := DecodeJobMessage([]byte(`{"job_id":"01HZX"}`))
	if err != nil || m.JobID != "01HZX" {
		t.Fatalf("decode: %+v err=%v", m, err)
	}
	if _, err := DecodeJobMessage([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty job id")
	}
	if _, err := DecodeJobMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for bad json")
	}
}
