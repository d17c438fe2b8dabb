package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/wudi/pdfoutline/ir/raw"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// legacyFileKey is algorithm 2 of ISO 32000-1: MD5 over padded password,
// O entry, P flags, and the file ID, with 50 extra rounds for R>=3.
func legacyFileKey(pwd, oEntry []byte, p int32, fileID []byte, keyLen, r int) []byte {
	return legacyFileKeyFromPadded(padPassword(pwd), oEntry, p, fileID, keyLen, r)
}

func legacyFileKeyFromPadded(padded, oEntry []byte, p int32, fileID []byte, keyLen, r int) []byte {
	if keyLen <= 0 {
		keyLen = 5
	}
	if keyLen > 16 {
		keyLen = 16
	}
	data := make([]byte, 0, 32+len(oEntry)+4+len(fileID))
	data = append(data, padded...)
	data = append(data, oEntry...)
	data = append(data,
		byte(p), byte(p>>8), byte(p>>16), byte(p>>24))
	data = append(data, fileID...)
	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLen])
			key = sum[:]
		}
	}
	return key[:keyLen]
}

// ownerToUserKey recovers the padded user password from the O entry
// given the owner password (algorithm 7 step, decryption direction).
func ownerToUserKey(ownerPwd, oEntry []byte, keyLen, r int) []byte {
	if keyLen <= 0 {
		keyLen = 5
	}
	if keyLen > 16 {
		keyLen = 16
	}
	sum := md5.Sum(padPassword(ownerPwd))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLen])
			key = sum[:]
		}
	}
	rc4Key := key[:keyLen]
	out := append([]byte(nil), oEntry...)
	if r <= 2 {
		dec, _ := rc4Apply(rc4Key, out)
		return dec
	}
	for i := 19; i >= 0; i-- {
		tmp := make([]byte, len(rc4Key))
		for j := range rc4Key {
			tmp[j] = rc4Key[j] ^ byte(i)
		}
		out, _ = rc4Apply(tmp, out)
	}
	return out
}

// checkUserPassword is algorithm 6: recompute U from the file key and
// compare. R2 compares all 32 bytes, R>=3 the first 16.
func checkUserPassword(key, uEntry, fileID []byte, r int) bool {
	if r <= 2 {
		expect, err := rc4Apply(key, passwordPadding)
		if err != nil || len(uEntry) < 16 {
			return false
		}
		return comparePrefix(expect[:16], uEntry)
	}
	h := md5.Sum(append(append([]byte(nil), passwordPadding...), fileID...))
	val := h[:]
	for i := 0; i < 20; i++ {
		tmp := make([]byte, len(key))
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val, _ = rc4Apply(tmp, val)
	}
	return len(uEntry) >= 16 && comparePrefix(val[:16], uEntry)
}

// rev6Hash is the iterated hash of ISO 32000-2 algorithm 2.B, used by
// R5/R6 password validation.
func rev6Hash(pwd, salt, extra []byte) []byte {
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	first := sha256.Sum256(concat(pwd, salt, extra))
	h := first[:]
	for round := 0; ; round++ {
		block := make([]byte, 0, 64*(len(pwd)+len(h)+len(extra)))
		for i := 0; i < 64; i++ {
			block = append(block, pwd...)
			block = append(block, h...)
			block = append(block, extra...)
		}
		enc, err := aesCBCRaw(h[:16], h[16:32], block)
		if err != nil {
			return h
		}
		mod := 0
		for _, b := range enc[:16] {
			mod += int(b)
		}
		switch mod % 3 {
		case 0:
			sum := sha256.Sum256(enc)
			h = sum[:]
		case 1:
			sum := sha512.Sum384(enc)
			h = sum[:]
		default:
			sum := sha512.Sum512(enc)
			h = sum[:]
		}
		if round >= 63 && int(enc[len(enc)-1]) <= round-32 {
			break
		}
	}
	return h[:32]
}

func deriveAES256User(pwd, uEntry, ue []byte) ([]byte, bool) {
	validationSalt := uEntry[32:40]
	keySalt := uEntry[40:48]
	if !comparePrefix(rev6Hash(pwd, validationSalt, nil)[:32], uEntry) {
		return nil, false
	}
	keyHash := rev6Hash(pwd, keySalt, nil)
	fileKey, err := aesCBCDecryptZeroIV(keyHash[:32], ue[:32])
	if err != nil {
		return nil, false
	}
	return fileKey, true
}

func deriveAES256Owner(pwd, oEntry, oe, uEntry []byte) ([]byte, bool) {
	validationSalt := oEntry[32:40]
	keySalt := oEntry[40:48]
	if !comparePrefix(rev6Hash(pwd, validationSalt, uEntry[:48])[:32], oEntry) {
		return nil, false
	}
	keyHash := rev6Hash(pwd, keySalt, uEntry[:48])
	fileKey, err := aesCBCDecryptZeroIV(keyHash[:32], oe[:32])
	if err != nil {
		return nil, false
	}
	return fileKey, true
}

// objectKey mixes the object number and generation into the file key
// (algorithm 1). R5+ uses the file key directly.
func objectKey(fileKey []byte, objNum, gen, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte(nil), fileKey...)
	key = append(key,
		byte(objNum), byte(objNum>>8), byte(objNum>>16),
		byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func rc4Apply(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesDecrypt handles the AESV2/AESV3 payload layout: a 16-byte IV
// prefix, CBC body, PKCS#7 padding.
func aesDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize || (len(data)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, errors.New("malformed aes payload")
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

func aesCBCDecryptZeroIV(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("data not block aligned")
	}
	out := make([]byte, len(data))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCRaw(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("data not block aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func comparePrefix(a, b []byte) bool {
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dictionary helpers shared with NewHandler.

func dictInt(d raw.Dictionary, key string) (int64, bool) {
	if d == nil {
		return 0, false
	}
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.Number); ok {
			return n.Int(), true
		}
	}
	return 0, false
}

func dictIntDefault(d raw.Dictionary, key string, def int64) int64 {
	if n, ok := dictInt(d, key); ok {
		return n
	}
	return def
}

func dictBytes(d raw.Dictionary, key string) []byte {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if s, ok := v.(raw.String); ok {
			return s.Value()
		}
	}
	return nil
}

func dictBool(d raw.Dictionary, key string) (bool, bool) {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if b, ok := v.(raw.Boolean); ok {
			return b.Value(), true
		}
	}
	return false, false
}

func dictName(d raw.Dictionary, key string) string {
	if v, ok := d.Get(raw.NameLiteral(key)); ok {
		if n, ok := v.(raw.Name); ok {
			return n.Value()
		}
	}
	return ""
}

func firstFileID(trailer raw.Dictionary) []byte {
	if trailer == nil {
		return nil
	}
	v, ok := trailer.Get(raw.NameLiteral("ID"))
	if !ok {
		return nil
	}
	arr, ok := v.(raw.Array)
	if !ok || arr.Len() == 0 {
		return nil
	}
	first, _ := arr.Get(0)
	if s, ok := first.(raw.String); ok {
		return s.Value()
	}
	return nil
}

func parseCryptFilters(dict raw.Dictionary, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfObj, ok := dict.Get(raw.NameLiteral("CF"))
	if !ok {
		return out, nil
	}
	cfDict, ok := cfObj.(raw.Dictionary)
	if !ok {
		return nil, errors.New("CF must be a dictionary")
	}
	for _, name := range cfDict.Keys() {
		entryObj, _ := cfDict.Get(name)
		entry, ok := entryObj.(raw.Dictionary)
		if !ok {
			return nil, errors.New("crypt filter entry must be a dictionary")
		}
		algo := base
		switch dictName(entry, "CFM") {
		case "V2":
			algo = algoRC4
		case "AESV2", "AESV3":
			algo = algoAES
		case "None":
			algo = algoNone
		case "":
		default:
			return nil, errors.New("unsupported crypt filter method")
		}
		out[name.Value()] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict raw.Dictionary, key string, base cryptAlgo, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name := dictName(dict, key)
	switch name {
	case "":
		return base, nil
	case "Identity":
		return algoNone, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return base, fmt.Errorf("crypt filter %s not defined", name)
}
