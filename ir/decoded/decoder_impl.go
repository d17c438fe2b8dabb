package decoded

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/wudi/pdfoutline/filters"
	"github.com/wudi/pdfoutline/ir/raw"
	"github.com/wudi/pdfoutline/observability"
	"github.com/wudi/pdfoutline/recovery"
	"github.com/wudi/pdfoutline/security"
)

// NewDecoder builds a Decoder that decrypts with handler and decodes
// with the filter pipeline, fanning streams out across GOMAXPROCS
// workers.
func NewDecoder(p *filters.Pipeline, handler security.Handler, strategy recovery.Strategy, logger observability.Logger) Decoder {
	if handler == nil {
		handler = security.NoopHandler()
	}
	if strategy == nil {
		strategy = recovery.NewStrictStrategy()
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &decoderImpl{pipeline: p, handler: handler, strategy: strategy, logger: logger}
}

type decoderImpl struct {
	pipeline *filters.Pipeline
	handler  security.Handler
	strategy recovery.Strategy
	logger   observability.Logger
}

func (d *decoderImpl) Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error) {
	doc := &Document{
		Raw:         rawDoc,
		Streams:     make(map[raw.ObjectRef]Stream),
		Permissions: d.handler.Permissions(),
		Encrypted:   rawDoc.Encrypted,
	}

	if d.handler.IsEncrypted() {
		d.decryptStrings(rawDoc)
		rawDoc.RefreshMetadata()
	}

	type task struct {
		ref raw.ObjectRef
		obj raw.Stream
	}
	var tasks []task
	for ref, obj := range rawDoc.Objects {
		if s, ok := obj.(raw.Stream); ok {
			tasks = append(tasks, task{ref: ref, obj: s})
		}
	}
	if len(tasks) == 0 {
		return doc, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	type result struct {
		ref    raw.ObjectRef
		stream Stream
		err    error
	}
	results := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			s, err := d.decodeStream(t.ref, t.obj)
			results <- result{ref: t.ref, stream: s, err: err}
		}(t)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			loc := recovery.Location{ObjectNum: res.ref.Num, ObjectGen: res.ref.Gen, Component: "decoder"}
			if d.strategy.OnError(res.err, loc) == recovery.ActionFail {
				return nil, res.err
			}
			d.logger.Warn("stream skipped", observability.Int("obj", res.ref.Num), observability.Error("err", res.err))
			continue
		}
		doc.Streams[res.ref] = res.stream
	}
	return doc, nil
}

// decryptStrings rewrites every string object in place with its
// plaintext. The Encrypt dictionary is exempt; the trailer's /ID
// strings are never touched because the trailer is not an indirect
// object and the walk only visits doc.Objects.
func (d *decoderImpl) decryptStrings(doc *raw.Document) {
	var encryptRef raw.ObjectRef
	haveEncrypt := false
	if doc.Trailer != nil {
		if v, ok := doc.Trailer.Get(raw.NameLiteral("Encrypt")); ok {
			if ref, ok := v.(raw.Reference); ok {
				encryptRef = ref.Ref()
				haveEncrypt = true
			}
		}
	}
	for ref, obj := range doc.Objects {
		if haveEncrypt && ref == encryptRef {
			continue
		}
		doc.Objects[ref] = d.decryptObject(ref, obj)
	}
}

// decryptObject descends into containers; string keys stay as the
// owning object's number and generation, which is what the object key
// derivation requires.
func (d *decoderImpl) decryptObject(ref raw.ObjectRef, obj raw.Object) raw.Object {
	switch o := obj.(type) {
	case raw.StringObj:
		dec, err := d.handler.Decrypt(ref.Num, ref.Gen, o.Value(), security.DataClassString)
		if err != nil {
			d.logger.Warn("string left encrypted", observability.Int("obj", ref.Num), observability.Error("err", err))
			return o
		}
		return raw.Str(dec)
	case *raw.ArrayObj:
		for i, item := range o.Items {
			o.Items[i] = d.decryptObject(ref, item)
		}
	case *raw.DictObj:
		for k, v := range o.KV {
			o.KV[k] = d.decryptObject(ref, v)
		}
	case *raw.StreamObj:
		if o.Dict != nil {
			d.decryptObject(ref, o.Dict)
		}
	}
	return obj
}

func (d *decoderImpl) decodeStream(ref raw.ObjectRef, s raw.Stream) (Stream, error) {
	data := s.RawData()

	if d.handler.IsEncrypted() {
		class := security.DataClassStream
		if isMetadataStream(s.Dictionary()) {
			class = security.DataClassMetadataStream
		}
		dec, err := d.handler.Decrypt(ref.Num, ref.Gen, data, class)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", ref, err)
		}
		data = dec
	}

	names, params := filters.ExtractFilters(s.Dictionary())
	if d.pipeline != nil && len(names) > 0 {
		out, err := d.pipeline.Decode(data, names, params)
		if err != nil {
			return nil, fmt.Errorf("decode filters %v for %s: %w", names, ref, err)
		}
		data = out
	}
	return decodedStream{raw: s, data: data, filters: names}, nil
}

func isMetadataStream(dict raw.Dictionary) bool {
	if dict == nil {
		return false
	}
	v, ok := dict.Get(raw.NameLiteral("Type"))
	if !ok {
		return false
	}
	n, ok := v.(raw.Name)
	return ok && n.Value() == "Metadata"
}

type decodedStream struct {
	raw     raw.Stream
	data    []byte
	filters []string
}

func (s decodedStream) Raw() raw.Stream            { return s.raw }
func (s decodedStream) Dictionary() raw.Dictionary { return s.raw.Dictionary() }
func (s decodedStream) Data() []byte               { return s.data }
func (s decodedStream) Filters() []string          { return s.filters }
