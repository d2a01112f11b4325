package main

import (
	"ehms-backend/cmd/ehms-cli/commands"
	"ehms-backend/lib/telemetry"
	"ehms-backend/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "ehms-cli")
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
