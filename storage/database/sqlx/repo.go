package sqlxrepos

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps sql "no rows" err to a core.NotFoundError
func trapNoRowsErr(err error, entity, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(entity)
	}
	return errors.Wrap(err, msg)
}
