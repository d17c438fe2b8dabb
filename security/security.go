// Package security implements the PDF Standard security handler for
// reading. Outline extraction only ever decrypts, so there is no
// encryption side here.
package security

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wudi/pdfoutline/ir/raw"
)

// DataClass identifies the kind of payload being decrypted. Strings and
// streams may use different crypt filters in V4+ documents.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

type Permissions struct {
	Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool
}

type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
}

// NewHandler builds a handler from the document's Encrypt dictionary.
// A nil dictionary yields a pass-through handler.
func NewHandler(encryptDict, trailer raw.Dictionary) (Handler, error) {
	if encryptDict == nil {
		return passthroughHandler{}, nil
	}
	if name := dictName(encryptDict, "Filter"); name != "" && name != "Standard" {
		return nil, fmt.Errorf("unsupported security filter %q", name)
	}

	v := dictIntDefault(encryptDict, "V", 1)
	r := dictIntDefault(encryptDict, "R", 2)
	if v > 6 || r > 6 {
		return nil, fmt.Errorf("encryption V=%d R=%d not supported", v, r)
	}
	keyBits := int64(40)
	if v >= 5 {
		keyBits = 256
	}
	if n, ok := dictInt(encryptDict, "Length"); ok && n > 0 {
		keyBits = n
	}
	if v >= 4 && keyBits < 128 {
		keyBits = 128
	}
	if keyBits%8 != 0 {
		return nil, errors.New("key length must be a multiple of 8")
	}

	h := &standardHandler{
		v:           int(v),
		r:           int(r),
		keyLen:      int(keyBits) / 8,
		oEntry:      dictBytes(encryptDict, "O"),
		uEntry:      dictBytes(encryptDict, "U"),
		oe:          dictBytes(encryptDict, "OE"),
		ue:          dictBytes(encryptDict, "UE"),
		permsEntry:  dictBytes(encryptDict, "Perms"),
		p:           int32(dictIntDefault(encryptDict, "P", -1)),
		fileID:      firstFileID(trailer),
		encryptMeta: true,
	}
	if b, ok := dictBool(encryptDict, "EncryptMetadata"); ok {
		h.encryptMeta = b
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	var err error
	if h.cryptFilters, err = parseCryptFilters(encryptDict, base); err != nil {
		return nil, err
	}
	if h.streamAlgo, err = resolveCryptFilter(encryptDict, "StmF", base, h.cryptFilters); err != nil {
		return nil, err
	}
	if h.stringAlgo, err = resolveCryptFilter(encryptDict, "StrF", base, h.cryptFilters); err != nil {
		return nil, err
	}
	return h, nil
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAES
)

type standardHandler struct {
	key          []byte
	v, r         int
	keyLen       int
	oEntry       []byte
	uEntry       []byte
	oe, ue       []byte
	permsEntry   []byte
	p            int32
	fileID       []byte
	encryptMeta  bool
	authed       bool
	streamAlgo   cryptAlgo
	stringAlgo   cryptAlgo
	cryptFilters map[string]cryptAlgo
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

func (h *standardHandler) Authenticate(password string) error {
	if h.r >= 5 {
		return h.authenticateAES256([]byte(password))
	}
	key := legacyFileKey([]byte(password), h.oEntry, h.p, h.fileID, h.keyLen, h.r)
	if !checkUserPassword(key, h.uEntry, h.fileID, h.r) {
		// Try the password as the owner password: recover the user
		// password key through the O entry.
		userKey := ownerToUserKey([]byte(password), h.oEntry, h.keyLen, h.r)
		key = legacyFileKeyFromPadded(userKey, h.oEntry, h.p, h.fileID, h.keyLen, h.r)
		if !checkUserPassword(key, h.uEntry, h.fileID, h.r) {
			return errors.New("invalid password")
		}
	}
	h.key = key
	h.authed = true
	return nil
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	if !h.authed {
		if err := h.Authenticate(""); err != nil {
			return nil, err
		}
	}
	if class == DataClassMetadataStream && !h.encryptMeta {
		return data, nil
	}
	algo := h.stringAlgo
	if class != DataClassString {
		algo = h.streamAlgo
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Apply(key, data)
}

func (h *standardHandler) Permissions() Permissions {
	return Permissions{
		Print:             h.p&(1<<2) != 0,
		Modify:            h.p&(1<<3) != 0,
		Copy:              h.p&(1<<4) != 0,
		ModifyAnnotations: h.p&(1<<5) != 0,
		FillForms:         h.p&(1<<8) != 0,
		ExtractAccessible: h.p&(1<<9) != 0,
		Assemble:          h.p&(1<<10) != 0,
		PrintHighQuality:  h.p&(1<<11) != 0,
	}
}

func (h *standardHandler) authenticateAES256(pwd []byte) error {
	if len(h.uEntry) >= 48 && len(h.ue) >= 32 {
		if key, ok := deriveAES256User(pwd, h.uEntry, h.ue); ok {
			h.key = key
			h.authed = true
			h.loadPermsAES256()
			return nil
		}
	}
	if len(h.oEntry) >= 48 && len(h.oe) >= 32 && len(h.uEntry) >= 48 {
		if key, ok := deriveAES256Owner(pwd, h.oEntry, h.oe, h.uEntry); ok {
			h.key = key
			h.authed = true
			h.loadPermsAES256()
			return nil
		}
	}
	return errors.New("invalid password")
}

func (h *standardHandler) loadPermsAES256() {
	if len(h.permsEntry) != 16 || len(h.key) == 0 {
		return
	}
	block, err := aes.NewCipher(h.key)
	if err != nil {
		return
	}
	out := make([]byte, 16)
	block.Decrypt(out, h.permsEntry)
	if string(out[9:12]) == "adb" {
		h.p = int32(binary.LittleEndian.Uint32(out[0:4]))
	}
}

type passthroughHandler struct{}

func (passthroughHandler) IsEncrypted() bool            { return false }
func (passthroughHandler) Authenticate(string) error    { return nil }
func (passthroughHandler) EncryptMetadata() bool        { return false }
func (passthroughHandler) Permissions() Permissions {
	return Permissions{Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true}
}
func (passthroughHandler) Decrypt(_, _ int, data []byte, _ DataClass) ([]byte, error) {
	return data, nil
}

// NoopHandler returns a reusable pass-through handler.
func NoopHandler() Handler { return passthroughHandler{} }
