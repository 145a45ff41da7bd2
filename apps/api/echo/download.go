package echoapi

import (
	"mime"
	"net/http"
	"net/url"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/storage/filestore"
)

type downloadApi struct {
	store *filestore.FileStore
}

func registerDownloadAPI(g *echo.Group, bearer echo.MiddlewareFunc, store *filestore.FileStore) {
	api := downloadApi{store: store}
	g.GET("/*", api.download, bearer)
}

// download streams a stored file as an attachment.
// Students only reach their own directory; teachers may read any file.
func (api *downloadApi) download(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	rel, err := url.PathUnescape(ctx.Param("*"))
	if err != nil {
		return core.NewFieldError("path", "invalid file path")
	}
	if err = filestore.CheckPath(rel); err != nil {
		return err
	}
	if sess.Role == identity.RoleStudent && !filestore.BelongsTo(rel, sess.UserID) {
		return errHttpForbidden
	}

	abs, err := api.store.Resolve(rel)
	if err != nil {
		return err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return core.NewNotFoundError("file")
		}
		return errors.Wrap(err, "opening stored file")
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "reading file info")
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filestore.DisplayName(rel)})
	if disposition == "" {
		disposition = "attachment"
	}
	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	resp.Header().Set(echo.HeaderContentDisposition, disposition)
	http.ServeContent(resp, ctx.Request(), "", info.ModTime(), f)
	return nil
}
