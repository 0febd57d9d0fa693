// Package reqparser fills the request fields derived from the target and the body: the
// decoded path, the query, JSON post params and the form.
package reqparser

import (
	"strings"

	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/mime"
	"github.com/lingdar-web/lingdar/internal/formdata"
	"github.com/lingdar-web/lingdar/internal/query"
	"github.com/lingdar-web/lingdar/internal/uridecode"
	"github.com/sirupsen/logrus"
)

type Parser struct {
	store      *objstore.Store
	persistent bool
	log        logrus.FieldLogger
}

// New returns a parser, which puts uploaded files into the store. Nil store means file
// parts are dropped.
func New(cfg *config.Config, store *objstore.Store, log logrus.FieldLogger) *Parser {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Parser{
		store:      store,
		persistent: cfg.Body.PersistUploads,
		log:        log,
	}
}

// Parse processes the target and, for POST requests, the body. The only error it returns is
// status.ErrURIDecoding, after which the connection must be closed. Malformed bodies just
// leave the corresponding fields empty.
func (p *Parser) Parse(request *http.Request, body []byte) error {
	path, rawQuery, _ := strings.Cut(request.RawPath, "?")

	decoded, err := uridecode.Decode(uf.S2B(path), nil)
	if err != nil {
		return err
	}

	request.Path = string(decoded)
	request.ResolvedPath = request.Path
	query.Parse(rawQuery, request.Query)

	if request.Method == method.POST {
		p.parseBody(request, body)
	}

	return nil
}

func (p *Parser) parseBody(request *http.Request, body []byte) {
	if boundary, ok := formdata.Boundary(request.ContentType); ok {
		p.parseMultipart(request, body, boundary)
		return
	}

	if ct := request.ContentType; len(ct) > 0 && mime.Complies(mime.FormURLEncoded, ct) {
		query.Parse(string(body), request.FormParams)
		return
	}

	// decoding into a fresh map, as a JSON null would otherwise nil the request's one
	var params map[string]any
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &params); err != nil {
		p.log.WithField("action", "parse-json").WithError(err).Debug("body isn't a JSON object")
		return
	}

	for key, value := range params {
		request.PostParams[key] = value
	}
}

func (p *Parser) parseMultipart(request *http.Request, body []byte, boundary string) {
	parts, err := formdata.ParseMultipart(body, boundary)
	if err != nil {
		p.log.WithField("action", "parse-multipart").WithError(err).Debug("malformed form")
		return
	}

	for _, part := range parts {
		if len(part.Filename) == 0 {
			request.FormParams[part.Name] = string(part.Data)
			continue
		}

		if p.store == nil {
			p.log.WithField("action", "parse-multipart").
				Debugf("no object store, dropping file %q", part.Filename)
			continue
		}

		obj, err := p.store.CacheFile(part.Data, part.Filename, p.persistent)
		if err != nil {
			p.log.WithFields(logrus.Fields{
				"action": "parse-multipart",
				"path":   part.Filename,
			}).WithError(err).Warn("cannot store the uploaded file")
			continue
		}

		request.Files[part.Name] = obj
	}
}
