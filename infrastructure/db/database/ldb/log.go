package ldb

import (
	"github.com/plasmalabs/rootchaind/infrastructure/logger"
)

var log = logger.RegisterSubSystem("LVDB")
