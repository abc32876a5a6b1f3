package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/voxkit-dev/voxkit/internal/resilience"
	sttmock "github.com/voxkit-dev/voxkit/pkg/provider/stt/mock"
	ttsmock "github.com/voxkit-dev/voxkit/pkg/provider/tts/mock"
)

func TestSTTFallbackDegradesToBackup(t *testing.T) {
	primary := sttmock.NewError(errors.New("api down")).WithName("remote")
	backup := sttmock.New("hello world").WithName("local")

	f := resilience.NewSTTFallback(primary, resilience.FallbackConfig{})
	f.AddFallback(backup)

	text, err := f.Transcribe(context.Background(), make([]byte, 64))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q, want transcript from backup", text)
	}
	if len(primary.Calls()) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.Calls()))
	}
}

func TestSTTFallbackAllFailed(t *testing.T) {
	f := resilience.NewSTTFallback(sttmock.NewError(errors.New("a")), resilience.FallbackConfig{})
	f.AddFallback(sttmock.NewError(errors.New("b")))

	if _, err := f.Transcribe(context.Background(), make([]byte, 64)); !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallbackCloseClosesAll(t *testing.T) {
	primary := sttmock.New("x")
	backup := sttmock.New("y")
	f := resilience.NewSTTFallback(primary, resilience.FallbackConfig{})
	f.AddFallback(backup)

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !primary.Closed() || !backup.Closed() {
		t.Error("not all backends were closed")
	}
}

func TestTTSFallbackDegradesToBackup(t *testing.T) {
	primary := ttsmock.NewError(errors.New("api down")).WithName("openai")
	backup := ttsmock.New([]byte{1, 2, 3, 4}, 22050).WithName("coqui")

	f := resilience.NewTTSFallback(primary, resilience.FallbackConfig{})
	f.AddFallback(backup)

	res, err := f.Synthesize(context.Background(), "hi there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.SampleRate != 22050 || len(res.PCM) != 4 {
		t.Fatalf("result = %d bytes @ %d Hz, want backup audio", len(res.PCM), res.SampleRate)
	}
}
