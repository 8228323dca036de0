// Package classfile reads the little a build needs from compiled JVM class
// files: the name of the source file a class was compiled from.
package classfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const magic = 0xCAFEBABE

var (
	// ErrNotClassFile is returned for input without the class file magic
	ErrNotClassFile = errors.New("not a class file")
	// ErrNoSourceFile is returned for class files compiled without the
	// SourceFile attribute (javac -g:none)
	ErrNoSourceFile = errors.New("no SourceFile attribute")
)

// Constant pool tags
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type reader struct {
	r   *bufio.Reader
	err error
}

func (r *reader) u1() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *reader) u2() uint16 {
	var v uint16
	r.read(&v)
	return v
}

func (r *reader) u4() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *reader) read(v any) {
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, v)
	}
}

func (r *reader) skip(n int) {
	if r.err == nil {
		_, r.err = r.r.Discard(n)
	}
}

func (r *reader) bytes(n int) []byte {
	b := make([]byte, n)
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, b)
	}
	return b
}

// skipMembers skips a fields or methods table
func (r *reader) skipMembers() {
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		r.skip(6) // access flags, name, descriptor
		r.skipAttributes()
	}
}

func (r *reader) skipAttributes() {
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		r.skip(2)
		r.skip(int(r.u4()))
	}
}

// SourceFile returns the SourceFile attribute of a class file, e.g.
// "Main.java" for Main.class, Main$Inner.class and any secondary top-level
// class declared in Main.java.
func SourceFile(in io.Reader) (string, error) {
	r := &reader{r: bufio.NewReader(in)}

	if r.u4() != magic {
		if r.err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotClassFile, r.err)
		}
		return "", ErrNotClassFile
	}
	r.skip(4) // minor, major version

	// Only UTF-8 entries are kept; attribute names and the source file
	// name both point at them
	count := int(r.u2())
	utf8 := make(map[uint16]string)
	for i := 1; i < count && r.err == nil; i++ {
		switch tag := r.u1(); tag {
		case tagUtf8:
			utf8[uint16(i)] = string(r.bytes(int(r.u2())))
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			r.skip(2)
		case tagMethodHandle:
			r.skip(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			r.skip(4)
		case tagLong, tagDouble:
			r.skip(8)
			i++ // eight-byte constants take two slots
		default:
			if r.err == nil {
				return "", fmt.Errorf("%w: constant pool tag %d", ErrNotClassFile, tag)
			}
		}
	}

	r.skip(6) // access flags, this class, super class
	r.skip(2 * int(r.u2()))
	r.skipMembers() // fields
	r.skipMembers() // methods

	attrs := int(r.u2())
	for i := 0; i < attrs && r.err == nil; i++ {
		name := utf8[r.u2()]
		length := int(r.u4())
		if name != "SourceFile" || length != 2 {
			r.skip(length)
			continue
		}
		if sf, ok := utf8[r.u2()]; ok && r.err == nil {
			return sf, nil
		}
	}

	if r.err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotClassFile, r.err)
	}
	return "", ErrNoSourceFile
}

// ReadSourceFile opens path and returns its SourceFile attribute
func ReadSourceFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sf, err := SourceFile(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}
