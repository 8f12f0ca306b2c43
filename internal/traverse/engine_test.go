package traverse

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hengadev/fieldvault/internal/fverr"
	"github.com/hengadev/fieldvault/internal/schema"
)

// fakeCodec is a reversible stand-in for the transit orchestrator: the
// payload is just base64 of the plaintext.
type fakeCodec struct {
	encrypts int
	decrypts int
}

func (f *fakeCodec) Encrypt(_ context.Context, plaintext string) (string, error) {
	f.encrypts++
	return "vault:v1:" + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (f *fakeCodec) Decrypt(_ context.Context, ciphertext string) (string, error) {
	f.decrypts++
	payload := strings.TrimPrefix(ciphertext, "vault:v1:")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type failingCodec struct{}

func (failingCodec) Encrypt(context.Context, string) (string, error) {
	return "", fverr.ErrTransitKeyMissing
}

func (failingCodec) Decrypt(context.Context, string) (string, error) {
	return "", fverr.ErrTransitKeyMissing
}

func newTestEngine() (*Engine, *fakeCodec) {
	codec := &fakeCodec{}
	return New(codec, nil), codec
}

func schemaFor(paths ...string) *schema.CollectionSchema {
	return &schema.CollectionSchema{Encrypt: paths}
}

func encryptDoc(t *testing.T, e *Engine, entity any, sch *schema.CollectionSchema) {
	t.Helper()
	require.NoError(t, e.ProcessDocument(context.Background(), entity, "users", sch, fverr.Encrypt))
}

func decryptDoc(t *testing.T, e *Engine, entity any, sch *schema.CollectionSchema) {
	t.Helper()
	require.NoError(t, e.ProcessDocument(context.Background(), entity, "users", sch, fverr.Decrypt))
}

func assertEncrypted(t *testing.T, v any) string {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected string, got %T", v)
	require.True(t, strings.HasPrefix(s, TagPrefix), "expected tagged ciphertext, got %q", s)
	return s
}

func TestTopLevelMapField(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{"name": "alice", "other": "plain"}
	sch := schemaFor("name")

	encryptDoc(t, e, doc, sch)
	assertEncrypted(t, doc["name"])
	assert.Equal(t, "plain", doc["other"])

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, "alice", doc["name"])
}

func TestNestedMapPath(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{
		"address": map[string]any{"city": "Lyon", "zip": "69000"},
	}
	sch := schemaFor("address.city")

	encryptDoc(t, e, doc, sch)
	inner := doc["address"].(map[string]any)
	assertEncrypted(t, inner["city"])
	assert.Equal(t, "69000", inner["zip"])

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, "Lyon", inner["city"])
}

func TestListFanOutAtIntermediateSegment(t *testing.T) {
	e, codec := newTestEngine()
	doc := map[string]any{
		"contacts": []any{
			map[string]any{"email": "a@x.com"},
			map[string]any{"email": "b@x.com"},
		},
	}
	sch := schemaFor("contacts.email")

	encryptDoc(t, e, doc, sch)
	contacts := doc["contacts"].([]any)
	first := assertEncrypted(t, contacts[0].(map[string]any)["email"])
	second := assertEncrypted(t, contacts[1].(map[string]any)["email"])
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, codec.encrypts)

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, "a@x.com", contacts[0].(map[string]any)["email"])
	assert.Equal(t, "b@x.com", contacts[1].(map[string]any)["email"])
}

func TestListLeaf(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{"aliases": []any{"ally", "al"}}
	sch := schemaFor("aliases")

	encryptDoc(t, e, doc, sch)
	aliases := doc["aliases"].([]any)
	assertEncrypted(t, aliases[0])
	assertEncrypted(t, aliases[1])

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, []any{"ally", "al"}, doc["aliases"])
}

func TestBsonDocuments(t *testing.T) {
	e, _ := newTestEngine()
	sch := schemaFor("address.city")

	t.Run("bson.M", func(t *testing.T) {
		doc := bson.M{"address": bson.M{"city": "Oslo"}}
		encryptDoc(t, e, doc, sch)
		assertEncrypted(t, doc["address"].(bson.M)["city"])
		decryptDoc(t, e, doc, sch)
		assert.Equal(t, "Oslo", doc["address"].(bson.M)["city"])
	})

	t.Run("bson.D", func(t *testing.T) {
		doc := bson.D{
			{Key: "address", Value: bson.D{{Key: "city", Value: "Oslo"}}},
		}
		encryptDoc(t, e, doc, sch)
		inner := doc[0].Value.(bson.D)
		assertEncrypted(t, inner[0].Value)
		decryptDoc(t, e, doc, sch)
		assert.Equal(t, "Oslo", doc[0].Value.(bson.D)[0].Value)
	})
}

type testAddress struct {
	City string `bson:"city"`
	Zip  string `bson:"zip"`
}

type testContact struct {
	Email string `bson:"email"`
}

type testEntity struct {
	Name     string        `bson:"name"`
	Address  testAddress   `bson:"address"`
	Contacts []testContact `bson:"contacts"`
	Age      any           `bson:"age"`
}

func TestStructEntity(t *testing.T) {
	e, _ := newTestEngine()
	entity := &testEntity{
		Name:     "alice",
		Address:  testAddress{City: "Lyon", Zip: "69000"},
		Contacts: []testContact{{Email: "a@x.com"}, {Email: "b@x.com"}},
	}
	sch := schemaFor("name", "address.city", "contacts.email")

	encryptDoc(t, e, entity, sch)
	assert.True(t, strings.HasPrefix(entity.Name, TagPrefix))
	assert.True(t, strings.HasPrefix(entity.Address.City, TagPrefix))
	assert.True(t, strings.HasPrefix(entity.Contacts[0].Email, TagPrefix))
	assert.True(t, strings.HasPrefix(entity.Contacts[1].Email, TagPrefix))
	assert.Equal(t, "69000", entity.Address.Zip)

	decryptDoc(t, e, entity, sch)
	assert.Equal(t, "alice", entity.Name)
	assert.Equal(t, "Lyon", entity.Address.City)
	assert.Equal(t, "a@x.com", entity.Contacts[0].Email)
	assert.Equal(t, "b@x.com", entity.Contacts[1].Email)
}

func TestStructInsideMapSlot(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{
		"address": testAddress{City: "Lyon", Zip: "69000"},
	}
	sch := schemaFor("address.city")

	encryptDoc(t, e, doc, sch)
	addr := doc["address"].(testAddress)
	assert.True(t, strings.HasPrefix(addr.City, TagPrefix))
	assert.Equal(t, "69000", addr.Zip)

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, "Lyon", doc["address"].(testAddress).City)
}

func TestTypedScalarRoundTrip(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{"age": 42, "score": 3.5, "active": true}
	sch := schemaFor("age", "score", "active")

	encryptDoc(t, e, doc, sch)
	assertEncrypted(t, doc["age"])
	assertEncrypted(t, doc["score"])
	assertEncrypted(t, doc["active"])

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, 42, doc["age"])
	assert.Equal(t, 3.5, doc["score"])
	assert.Equal(t, true, doc["active"])
}

// Decrypt of a raw scalar leaf is a documented no-op: encrypted scalars are
// persisted as tagged strings, so a still-numeric leaf was never encrypted.
func TestDecryptScalarIsNoOp(t *testing.T) {
	e, codec := newTestEngine()
	doc := map[string]any{"age": 42}

	decryptDoc(t, e, doc, schemaFor("age"))
	assert.Equal(t, 42, doc["age"])
	assert.Zero(t, codec.decrypts)
}

func TestIdempotency(t *testing.T) {
	e, codec := newTestEngine()
	doc := map[string]any{"name": "alice"}
	sch := schemaFor("name")

	encryptDoc(t, e, doc, sch)
	once := doc["name"]
	encryptDoc(t, e, doc, sch)
	assert.Equal(t, once, doc["name"])
	assert.Equal(t, 1, codec.encrypts)

	// Decrypt of plaintext is a no-op too.
	plain := map[string]any{"name": "alice"}
	decryptDoc(t, e, plain, sch)
	assert.Equal(t, "alice", plain["name"])
	assert.Zero(t, codec.decrypts)
}

func TestMissingSegmentsAreSilent(t *testing.T) {
	e, codec := newTestEngine()
	doc := map[string]any{"name": "alice"}

	encryptDoc(t, e, doc, schemaFor("address.city", "nope"))
	assert.Zero(t, codec.encrypts)

	entity := &testEntity{Name: "alice"}
	encryptDoc(t, e, entity, schemaFor("address.country", "missing.deep.path"))
	assert.Zero(t, codec.encrypts)
}

func TestNotSkipIfRules(t *testing.T) {
	sch := &schema.CollectionSchema{
		Encrypt:   []string{"name"},
		NotSkipIf: map[string][]string{"region": {"eu", "uk"}},
	}

	tests := []struct {
		name      string
		doc       map[string]any
		processed bool
	}{
		{name: "allowed value", doc: map[string]any{"name": "a", "region": "eu"}, processed: true},
		{name: "value outside set", doc: map[string]any{"name": "a", "region": "us"}, processed: false},
		{name: "field absent", doc: map[string]any{"name": "a"}, processed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, codec := newTestEngine()
			encryptDoc(t, e, tt.doc, sch)
			if tt.processed {
				assertEncrypted(t, tt.doc["name"])
			} else {
				// The whole document is skipped: no leaf touched, no codec call.
				assert.Equal(t, "a", tt.doc["name"])
				assert.Zero(t, codec.encrypts)
			}
		})
	}
}

func TestSkipIfRules(t *testing.T) {
	sch := &schema.CollectionSchema{
		Encrypt: []string{"name"},
		SkipIf:  map[string][]string{"status": {"archived"}},
	}

	t.Run("trigger value skips", func(t *testing.T) {
		e, codec := newTestEngine()
		doc := map[string]any{"name": "a", "status": "archived"}
		encryptDoc(t, e, doc, sch)
		assert.Equal(t, "a", doc["name"])
		assert.Zero(t, codec.encrypts)
	})

	t.Run("other value processes", func(t *testing.T) {
		e, _ := newTestEngine()
		doc := map[string]any{"name": "a", "status": "active"}
		encryptDoc(t, e, doc, sch)
		assertEncrypted(t, doc["name"])
	})

	t.Run("absent field processes", func(t *testing.T) {
		e, _ := newTestEngine()
		doc := map[string]any{"name": "a"}
		encryptDoc(t, e, doc, sch)
		assertEncrypted(t, doc["name"])
	})

	t.Run("non-string trigger value matches by string form", func(t *testing.T) {
		e, codec := newTestEngine()
		doc := map[string]any{"name": "a", "status": 7}
		sch := &schema.CollectionSchema{
			Encrypt: []string{"name"},
			SkipIf:  map[string][]string{"status": {"7"}},
		}
		encryptDoc(t, e, doc, sch)
		assert.Zero(t, codec.encrypts)
	})
}

func TestNotSkipIfEvaluatedBeforeSkipIf(t *testing.T) {
	// A document failing notSkipIf is skipped even when skipIf would not
	// trigger; the precedence is fixed.
	e, codec := newTestEngine()
	sch := &schema.CollectionSchema{
		Encrypt:   []string{"name"},
		SkipIf:    map[string][]string{"status": {"archived"}},
		NotSkipIf: map[string][]string{"region": {"eu"}},
	}
	doc := map[string]any{"name": "a", "status": "active", "region": "us"}

	encryptDoc(t, e, doc, sch)
	assert.Equal(t, "a", doc["name"])
	assert.Zero(t, codec.encrypts)
}

func TestGenericRecursionLeaf(t *testing.T) {
	e, _ := newTestEngine()
	doc := map[string]any{
		"profile": map[string]any{
			"bio":  "hello",
			"tags": []any{"one", "two"},
			"meta": map[string]any{"note": "deep"},
		},
	}
	sch := schemaFor("profile")

	encryptDoc(t, e, doc, sch)
	profile := doc["profile"].(map[string]any)
	assertEncrypted(t, profile["bio"])
	assertEncrypted(t, profile["tags"].([]any)[0])
	assertEncrypted(t, profile["tags"].([]any)[1])
	assertEncrypted(t, profile["meta"].(map[string]any)["note"])

	decryptDoc(t, e, doc, sch)
	assert.Equal(t, "hello", profile["bio"])
	assert.Equal(t, "deep", profile["meta"].(map[string]any)["note"])
}

func TestGenericRecursionCycleTerminates(t *testing.T) {
	e, _ := newTestEngine()
	inner := map[string]any{"bio": "hello"}
	inner["self"] = inner
	doc := map[string]any{"profile": inner}

	encryptDoc(t, e, doc, schemaFor("profile"))
	assertEncrypted(t, inner["bio"])
}

func TestCodecErrorAbortsDocument(t *testing.T) {
	e := New(failingCodec{}, nil)
	doc := map[string]any{"name": "alice", "email": "a@x.com"}

	err := e.ProcessDocument(context.Background(), doc, "users", schemaFor("name", "email"), fverr.Encrypt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fverr.ErrTraversalFailure))
	assert.True(t, errors.Is(err, fverr.ErrTransitKeyMissing))
	// Fail-loud: the first failing path aborts everything after it.
	assert.Equal(t, "a@x.com", doc["email"])
}

func TestCorruptTypeTagIsFatal(t *testing.T) {
	e, codec := newTestEngine()
	tagged, err := codec.Encrypt(context.Background(), "widget:broken")
	require.NoError(t, err)
	doc := map[string]any{"name": tagged}

	err = e.ProcessDocument(context.Background(), doc, "users", schemaFor("name"), fverr.Decrypt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fverr.ErrUnsupportedType))
}

func TestOpaqueLeavesUntouched(t *testing.T) {
	e, codec := newTestEngine()
	doc := map[string]any{
		"raw":  []byte{1, 2, 3},
		"when": bson.M{},
	}

	encryptDoc(t, e, doc, schemaFor("raw"))
	assert.Equal(t, []byte{1, 2, 3}, doc["raw"])
	assert.Zero(t, codec.encrypts)
}
