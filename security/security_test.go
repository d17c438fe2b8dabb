package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"testing"

	"github.com/wudi/pdfoutline/ir/raw"
)

func rc4Legacy(r int, userPwd, ownerPwd string, fileID []byte, p int32) (raw.Dictionary, raw.Dictionary, []byte) {
	// Writer-side derivation for the legacy handler, algorithms 2-5.
	keyLen := 5
	ownerSum := md5.Sum(padPassword([]byte(ownerPwd)))
	oEntry, _ := rc4Apply(ownerSum[:keyLen], padPassword([]byte(userPwd)))

	key := legacyFileKey([]byte(userPwd), oEntry, p, fileID, keyLen, r)
	var uEntry []byte
	if r <= 2 {
		uEntry, _ = rc4Apply(key, passwordPadding)
	} else {
		h := md5.Sum(append(append([]byte(nil), passwordPadding...), fileID...))
		val := h[:]
		for i := 0; i < 20; i++ {
			tmp := make([]byte, len(key))
			for j := range key {
				tmp[j] = key[j] ^ byte(i)
			}
			val, _ = rc4Apply(tmp, val)
		}
		uEntry = append(val[:16], make([]byte, 16)...)
	}

	enc := raw.Dict()
	enc.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Standard"))
	enc.Set(raw.NameLiteral("V"), raw.NumberInt(1))
	enc.Set(raw.NameLiteral("R"), raw.NumberInt(int64(r)))
	enc.Set(raw.NameLiteral("Length"), raw.NumberInt(40))
	enc.Set(raw.NameLiteral("O"), raw.Str(oEntry))
	enc.Set(raw.NameLiteral("U"), raw.Str(uEntry))
	enc.Set(raw.NameLiteral("P"), raw.NumberInt(int64(p)))

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.Str(fileID), raw.Str(fileID)))
	return enc, trailer, key
}

func TestPassthrough(t *testing.T) {
	h, err := NewHandler(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.IsEncrypted() {
		t.Fatal("nil encrypt dict must be pass-through")
	}
	data := []byte("plain")
	out, err := h.Decrypt(1, 0, data, DataClassStream)
	if err != nil || !bytes.Equal(out, data) {
		t.Fatalf("pass-through changed data: %v %q", err, out)
	}
}

func TestRC4EmptyUserPassword(t *testing.T) {
	enc, trailer, key := rc4Legacy(2, "", "owner-secret", []byte("file-id-01"), -4)
	h, err := NewHandler(enc, trailer)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !h.IsEncrypted() {
		t.Fatal("handler should report encrypted")
	}
	if err := h.Authenticate(""); err != nil {
		t.Fatalf("empty user password should authenticate: %v", err)
	}

	plain := []byte("secret stream data")
	objKey := objectKey(key, 5, 0, 2, false)
	ct, _ := rc4Apply(objKey, plain)
	got, err := h.Decrypt(5, 0, ct, DataClassStream)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q want %q", got, plain)
	}
}

func TestRC4WrongPassword(t *testing.T) {
	enc, trailer, _ := rc4Legacy(2, "letmein", "owner-secret", []byte("file-id-01"), -4)
	h, err := NewHandler(enc, trailer)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Authenticate("wrong"); err == nil {
		t.Fatal("wrong password should fail")
	}
}

func TestRC4OwnerPassword(t *testing.T) {
	enc, trailer, _ := rc4Legacy(2, "userpw", "ownerpw", []byte("file-id-01"), -4)
	h, err := NewHandler(enc, trailer)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Authenticate("ownerpw"); err != nil {
		t.Fatalf("owner password should authenticate: %v", err)
	}
}

func TestPermissionsBits(t *testing.T) {
	p := int32(-4)
	p &^= 1 << 2  // no print
	p &^= 1 << 10 // no assembly
	enc, trailer, _ := rc4Legacy(2, "", "owner", []byte("id"), p)
	h, err := NewHandler(enc, trailer)
	if err != nil {
		t.Fatal(err)
	}
	perms := h.Permissions()
	if perms.Print || perms.Assemble {
		t.Fatalf("cleared bits should be false: %+v", perms)
	}
	if !perms.Copy || !perms.Modify {
		t.Fatalf("remaining bits should be true: %+v", perms)
	}
}

func TestAES256RoundTrip(t *testing.T) {
	pwd := []byte("hunter2")
	fileKey := bytes.Repeat([]byte{0xA7}, 32)
	validationSalt := []byte("vsalt678")
	keySalt := []byte("ksalt678")

	uEntry := append(append(append([]byte(nil),
		rev6Hash(pwd, validationSalt, nil)[:32]...), validationSalt...), keySalt...)
	ue, err := aesCBCRaw(rev6Hash(pwd, keySalt, nil)[:32], make([]byte, aes.BlockSize), fileKey)
	if err != nil {
		t.Fatal(err)
	}

	enc := raw.Dict()
	enc.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Standard"))
	enc.Set(raw.NameLiteral("V"), raw.NumberInt(5))
	enc.Set(raw.NameLiteral("R"), raw.NumberInt(6))
	enc.Set(raw.NameLiteral("Length"), raw.NumberInt(256))
	enc.Set(raw.NameLiteral("U"), raw.Str(uEntry))
	enc.Set(raw.NameLiteral("UE"), raw.Str(ue))
	enc.Set(raw.NameLiteral("O"), raw.Str(make([]byte, 48)))
	enc.Set(raw.NameLiteral("OE"), raw.Str(make([]byte, 32)))
	cf := raw.Dict()
	std := raw.Dict()
	std.Set(raw.NameLiteral("CFM"), raw.NameLiteral("AESV3"))
	cf.Set(raw.NameLiteral("StdCF"), std)
	enc.Set(raw.NameLiteral("CF"), cf)
	enc.Set(raw.NameLiteral("StmF"), raw.NameLiteral("StdCF"))
	enc.Set(raw.NameLiteral("StrF"), raw.NameLiteral("StdCF"))

	h, err := NewHandler(enc, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := h.Authenticate("hunter2"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := h.Authenticate("hunter2"); err != nil {
		t.Fatalf("re-authenticate: %v", err)
	}

	// Encrypt a payload with the recovered file key layout: IV + CBC +
	// PKCS#7.
	plain := []byte("outline text inside an encrypted stream")
	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	iv := bytes.Repeat([]byte{0x11}, aes.BlockSize)
	block, _ := aes.NewCipher(fileKey)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	payload := append(append([]byte(nil), iv...), ct...)

	got, err := h.Decrypt(7, 0, payload, DataClassStream)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q want %q", got, plain)
	}

	if _, err := NewHandler(enc, nil); err != nil {
		t.Fatal(err)
	}
	h2, _ := NewHandler(enc, nil)
	if err := h2.Authenticate("wrong"); err == nil {
		t.Fatal("wrong password should fail")
	}
}

func TestUnsupportedFilter(t *testing.T) {
	enc := raw.Dict()
	enc.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FooSec"))
	if _, err := NewHandler(enc, nil); err == nil {
		t.Fatal("non-standard filter should be rejected")
	}
}
