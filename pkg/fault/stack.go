package fault

import (
	"reflect"
	"runtime"
	"strings"
)

// CaptureStack returns the current call stack as a string.
// It skips the first few frames to exclude the CaptureStack call itself.
func CaptureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}

// Fingerprint derives the dedup key for err: the error's dynamic type name
// plus the first depth lines of trace. Two sightings of the same error type
// from the same call path collapse onto one key regardless of deeper trace
// content.
func Fingerprint(err error, trace string, depth int) string {
	name := "nil"
	if err != nil {
		if t := reflect.TypeOf(err); t != nil {
			name = t.String()
		}
	}
	return name + "|" + traceHead(trace, depth)
}

// traceHead returns the first n lines of trace.
func traceHead(trace string, n int) string {
	if n <= 0 || trace == "" {
		return ""
	}
	end := 0
	for i := 0; i < n; i++ {
		next := strings.IndexByte(trace[end:], '\n')
		if next < 0 {
			return trace
		}
		end += next + 1
	}
	return trace[:end]
}

// itoa converts an integer to a string without allocating.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := false
	if i < 0 {
		neg = true
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
