package workqueue

import (
	"bytes"
	"testing"
)

func TestMessageCodecRoundtrip(t *testing.T) {
	header := []byte(`{"job":"stream"}`)
	payload := []byte(`{"id":"3","text":"Message 3"}`)

	dec, ok := DecodeMessage(EncodeMessage(header, payload))
	if !ok {
		t.Fatal("decode rejected a freshly encoded message")
	}
	if !bytes.Equal(dec.Header, header) {
		t.Fatalf("header changed in transit: %q", dec.Header)
	}
	if !bytes.Equal(dec.Payload, payload) {
		t.Fatalf("payload changed in transit: %q", dec.Payload)
	}
}

func TestMessageCodecEmptyHeader(t *testing.T) {
	dec, ok := DecodeMessage(EncodeMessage(nil, []byte("body")))
	if !ok || len(dec.Header) != 0 || string(dec.Payload) != "body" {
		t.Fatalf("empty header roundtrip: ok=%v header=%q payload=%q", ok, dec.Header, dec.Payload)
	}
}

func TestMessageCodecRejectsCorruption(t *testing.T) {
	enc := EncodeMessage([]byte("h"), []byte("p"))

	flipped := append([]byte(nil), enc...)
	flipped[5] ^= 0x01
	if _, ok := DecodeMessage(flipped); ok {
		t.Fatal("accepted a message with a flipped body byte")
	}

	if _, ok := DecodeMessage(enc[:6]); ok {
		t.Fatal("accepted a truncated message")
	}
	if _, ok := DecodeMessage(nil); ok {
		t.Fatal("accepted an empty value")
	}
}

func TestMessageCodecCopiesSections(t *testing.T) {
	enc := EncodeMessage([]byte("hh"), []byte("pp"))
	dec, ok := DecodeMessage(enc)
	if !ok {
		t.Fatal("decode failed")
	}
	enc[4] = 'x'
	if string(dec.Header) != "hh" {
		t.Fatal("decoded header aliases the storage value")
	}
}
