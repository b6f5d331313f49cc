package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const (
	// MaxPayload 单帧负载上限（字节）
	MaxPayload = 1024
	// HeaderSize 长度前缀：4 字节大端
	HeaderSize = 4
)

var (
	// ErrFrameTooLarge 声明长度超过 MaxPayload
	ErrFrameTooLarge = errors.New("frame exceeds max payload")
	// ErrTruncated 长度或负载未读满即遇到流结束
	ErrTruncated = errors.New("truncated frame")
)

// Encode 在负载前加上 4 字节大端长度
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("encode %d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// WriteFrame 写出完整的一帧；短写由循环重试
func WriteFrame(w io.Writer, payload []byte) error {
	buf, err := Encode(payload)
	if err != nil {
		return err
	}
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

// ReadFrame 阻塞读取一帧：先读满 4 字节长度，再读满负载
//
// 在任何字节到达前流结束返回 io.EOF（对端正常断开）；
// 读到一半结束返回 ErrTruncated；超长帧会先丢弃声明的字节数再返回 ErrFrameTooLarge，
// 不按声明长度分配内存。
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read length: %w", ErrTruncated)
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxPayload {
		// 丢弃负载，io.Discard 使用固定大小的缓冲
		_, _ = io.CopyN(io.Discard, r, int64(n))
		return nil, fmt.Errorf("read %d bytes: %w", n, ErrFrameTooLarge)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read payload: %w", ErrTruncated)
		}
		return nil, err
	}
	return payload, nil
}

// IsDisconnect 区分“对端断开”与“格式错误”：前者不记为协议违规
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
