package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

type redisTarget struct {
	addr     string
	password string
	db       int
}

func parseRedisURL(raw string) (redisTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return redisTarget{}, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if u.Scheme == "unix" {
		return redisTarget{}, errors.New("unix sockets not supported by this worker")
	}
	if u.Host == "" {
		return redisTarget{}, fmt.Errorf("REDIS_URL %q has no host", raw)
	}
	t := redisTarget{addr: u.Host}
	t.password, _ = u.User.Password()
	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		if t.db, err = strconv.Atoi(path); err != nil {
			return redisTarget{}, fmt.Errorf("REDIS_URL database index %q: %w", path, err)
		}
	}
	return t, nil
}

func writeCommand(w *bufio.ReadWriter, cmd string, args ...string) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n", 1+len(args)); err != nil {
		return err
	}
	if err := writeBulk(w, cmd); err != nil {
		return err
	}
	for _, a := range args {
		if err := writeBulk(w, a); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeBulk(w *bufio.ReadWriter, s string) error {
	_, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(s), s)
	return err
}

func readLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if len(b) >= 2 && b[len(b)-2] == '\r' {
		b = b[:len(b)-2]
	}
	return string(b), nil
}

func readOK(rw *bufio.ReadWriter) error {
	line, err := readLine(rw.Reader)
	if err != nil {
		return err
	}
	if len(line) > 0 && line[0] == '+' {
		return nil
	}
	return fmt.Errorf("redis not OK: %s", line)
}

// readBulkBody reads the payload announced by a "$<n>" header.
func readBulkBody(r *bufio.Reader, header string) (string, error) {
	n, err := strconv.Atoi(header[1:])
	if err != nil {
		return "", fmt.Errorf("bad bulk header %q", header)
	}
	if n < 0 {
		return "", nil
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func readBulk(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		return "", fmt.Errorf("expected bulk string, got %q", line)
	}
	return readBulkBody(r, line)
}

// readBRPOP returns the queue and payload popped by BRPOP. Both are empty
// when the command timed out.
func readBRPOP(rw *bufio.ReadWriter) (key string, payload string, err error) {
	line, err := readLine(rw.Reader)
	if err != nil {
		return "", "", err
	}
	if len(line) == 0 {
		return "", "", errors.New("empty reply")
	}
	switch line[0] {
	case '*':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", "", fmt.Errorf("bad array header %q", line)
		}
		if n <= 0 {
			return "", "", nil
		}
		if n != 2 {
			return "", "", fmt.Errorf("BRPOP reply has %d elements", n)
		}
		if key, err = readBulk(rw.Reader); err != nil {
			return "", "", err
		}
		if payload, err = readBulk(rw.Reader); err != nil {
			return "", "", err
		}
		return key, payload, nil
	case '$':
		payload, err = readBulkBody(rw.Reader, line)
		return "", payload, err
	case '-':
		return "", "", fmt.Errorf("redis error: %s", line)
	default:
		return "", "", fmt.Errorf("unexpected reply: %s", line)
	}
}
