package bgremove

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"patientboard/internal/logging"
	"patientboard/internal/services"
	"patientboard/internal/testsupport"
)

func stubCommand(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string(nil), args...))
		}
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "RMBG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

// TestHelperProcess stands in for rembg. It writes a cutout whose left half
// is transparent and right half opaque red.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("RMBG_HELPER_MODE") == "fail" {
		os.Stderr.WriteString("model download failed\n")
		os.Exit(3)
	}
	args := os.Args
	output := args[len(args)-1]
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	if err := imaging.Save(img, output); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(2)
	}
	os.Exit(0)
}

func newRemover(t *testing.T) *Remover {
	cfg := testsupport.NewConfig(t)
	return New(cfg, logging.NewNop())
}

func TestRemoveWritesFlattenedOutput(t *testing.T) {
	var calls [][]string
	stubCommand(t, "success", &calls)
	dir := t.TempDir()
	input := filepath.Join(dir, "1_IMG_0001.jpg")
	testsupport.WriteJPEG(t, input, 20, 10, color.Black)

	out, err := newRemover(t).Remove(context.Background(), input)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if out != filepath.Join(dir, "1_IMG_0001_NO_BG.jpg") {
		t.Fatalf("unexpected output %q", out)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one rembg call, got %d", len(calls))
	}
	args := calls[0]
	want := []string{"i", "-m", "u2net_human_seg", "-a", input}
	for i, arg := range want {
		if args[i] != arg {
			t.Fatalf("unexpected args %v", args)
		}
	}

	img, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	left := color.NRGBAModel.Convert(img.At(2, 5)).(color.NRGBA)
	right := color.NRGBAModel.Convert(img.At(17, 5)).(color.NRGBA)
	if left.R < 240 || left.G < 240 || left.B < 240 {
		t.Fatalf("expected transparent area flattened to white, got %+v", left)
	}
	if right.R < 200 || right.G > 60 {
		t.Fatalf("expected opaque red kept, got %+v", right)
	}
}

func TestRemoveRejectsNonJPG(t *testing.T) {
	r := newRemover(t)
	for _, name := range []string{"photo.png", "1_IMG_0001_NO_BG.jpg"} {
		if _, err := r.Remove(context.Background(), filepath.Join(t.TempDir(), name)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestRemoveReportsToolFailure(t *testing.T) {
	stubCommand(t, "fail", nil)
	input := filepath.Join(t.TempDir(), "2_IMG_0002.jpg")
	testsupport.WriteJPEG(t, input, 4, 4, color.Black)

	_, err := newRemover(t).Remove(context.Background(), input)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(input), "2_IMG_0002_NO_BG.jpg")); !os.IsNotExist(statErr) {
		t.Fatal("no output expected on failure")
	}
}

func TestRemoveAllSkipsDoneAndIntraOral(t *testing.T) {
	var calls [][]string
	stubCommand(t, "success", &calls)
	root := t.TempDir()
	testsupport.PatientFolder(t, root, "10")
	done := testsupport.PatientFolder(t, root, "11")
	for _, name := range []string{"1_IMG_1001_NO_BG.jpg", "2_IMG_1002_NO_BG.jpg", "3_IMG_1003_NO_BG.jpg"} {
		testsupport.WriteJPEG(t, filepath.Join(done, name), 4, 4, color.White)
	}

	result, err := newRemover(t).RemoveAll(context.Background(), root)
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if result.Processed != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 rembg calls, got %d", len(calls))
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})
	flat := Flatten(img)
	if got := flat.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("expected white, got %+v", got)
	}
	if got := flat.NRGBAAt(1, 0); got != (color.NRGBA{B: 255, A: 255}) {
		t.Fatalf("expected blue, got %+v", got)
	}
}
