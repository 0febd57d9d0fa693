// Package upload accepts multipart forms, moving uploaded files into the persistent tier of
// the object store.
package upload

import (
	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/internal/formdata"
	"github.com/lingdar-web/lingdar/router"
	"github.com/sirupsen/logrus"
)

const Priority = 2

// Result is the response body. Files maps the form field names to the stored names.
type Result struct {
	Files map[string]string `json:"files"`
}

type Router struct {
	router.Base
	store *objstore.Store
	log   logrus.FieldLogger
}

func New(pattern string, store *objstore.Store, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Router{
		Base:  router.NewBase(pattern, Priority),
		store: store,
		log:   log,
	}
}

// Post answers with the stored names of the files. Requests that aren't multipart forms
// are passed further.
func (r *Router) Post(request *http.Request, response *http.Response, next router.Next) {
	if _, ok := formdata.Boundary(request.ContentType); !ok {
		next()
		return
	}

	result := Result{Files: make(map[string]string, len(request.Files))}
	for field, obj := range request.Files {
		if obj.Tier != objstore.Persistent && r.store != nil {
			promoted, err := r.store.Promote(obj)
			if err != nil {
				r.log.WithFields(logrus.Fields{
					"action": "upload",
					"digest": obj.Digest,
				}).WithError(err).Error("cannot persist the file")
				_ = response.EndWith(status.InternalServerError, nil)
				return
			}

			obj = promoted
			request.Files[field] = obj
		}

		result.Files[field] = obj.Name
	}

	if err := response.EndWith(status.OK, result); err != nil {
		r.log.WithField("action", "upload").WithError(err).Error("cannot encode the result")
	}
}
