package rootchain

import (
	"github.com/plasmalabs/rootchaind/infrastructure/logger"
)

var log = logger.RegisterSubSystem("LEDG")
