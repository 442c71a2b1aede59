package root

import (
	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/auth"
	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/db"
	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/leads"
	"github.com/zenGate-Global/estatedesk/apps/cli/cmd/properties"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(db.Command())
	Root().AddCommand(leads.Command())
	Root().AddCommand(properties.Command())
}
