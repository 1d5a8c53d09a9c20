package output

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FFmpegBinary is the executable looked up on PATH.
var FFmpegBinary = "ffmpeg"

// CheckFFmpeg reports whether the ffmpeg binary can be found.
func CheckFFmpeg() error {
	if _, err := exec.LookPath(FFmpegBinary); err != nil {
		return errors.Wrapf(err, "%s not found on PATH; install ffmpeg or choose another output mode", FFmpegBinary)
	}
	return nil
}

// FFmpegArgs builds the argument list that encodes raw BGR frames read from stdin.
func FFmpegArgs(inputArgs, outputArgs, path string, fps float64, size image.Point) []string {
	args := []string{"-y", "-nostdin"}
	args = append(args, strings.Fields(inputArgs)...)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", size.X, size.Y),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
	)
	args = append(args, strings.Fields(outputArgs)...)
	return append(args, path)
}

// FFmpegEncoders returns a factory that starts one ffmpeg process per file.
func FFmpegEncoders(inputArgs, outputArgs string) EncoderFactory {
	return func(path string, fps float64, size image.Point) (Encoder, error) {
		cmd := exec.Command(FFmpegBinary, FFmpegArgs(inputArgs, outputArgs, path, fps, size)...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, errors.Wrap(err, "ffmpeg stdin")
		}
		e := &ffmpegEncoder{cmd: cmd, stdin: stdin, size: size}
		cmd.Stderr = &e.stderr
		if err := cmd.Start(); err != nil {
			return nil, errors.Wrap(err, "starting ffmpeg")
		}
		return e, nil
	}
}

type ffmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	size   image.Point
}

func (e *ffmpegEncoder) Write(frame gocv.Mat) error {
	if frame.Cols() != e.size.X || frame.Rows() != e.size.Y || frame.Type() != gocv.MatTypeCV8UC3 {
		return errors.Errorf("ffmpeg expects %dx%d BGR frames, got %dx%d type %v",
			e.size.X, e.size.Y, frame.Cols(), frame.Rows(), frame.Type())
	}
	src := frame
	if !frame.IsContinuous() {
		src = frame.Clone()
		defer src.Close()
	}
	if _, err := e.stdin.Write(src.ToBytes()); err != nil {
		return errors.Wrapf(err, "ffmpeg: %s", e.lastError())
	}
	return nil
}

func (e *ffmpegEncoder) Close() error {
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return errors.Wrapf(err, "ffmpeg: %s", e.lastError())
	}
	return nil
}

func (e *ffmpegEncoder) lastError() string {
	lines := strings.Split(strings.TrimSpace(e.stderr.String()), "\n")
	return lines[len(lines)-1]
}
