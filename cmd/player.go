package cmd

import (
	"github.com/jsphweid/dsmidiplayer/constants"
	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/widget"
	"go.uber.org/zap"
)

// newEngine opens the configured output port, if any. The returned func
// releases it.
func newEngine(log *zap.Logger) (*engine.SMF, func(), error) {
	opts := []engine.Option{engine.WithLogger(log)}
	closePort := func() {}

	if portName != "" {
		send, closeFn, err := engine.PortSender(portName)
		if err != nil {
			log.Error("midi output unavailable", zap.String("port", portName), zap.Strings("available", engine.OutPorts()))
			return nil, nil, err
		}
		opts = append(opts, engine.WithSender(send))
		closePort = func() {
			if err := closeFn(); err != nil {
				log.Warn("could not close midi output", zap.Error(err))
			}
		}
	}
	return engine.NewSMF(opts...), closePort, nil
}

func newWidget(e engine.Engine, log *zap.Logger) *widget.Widget {
	return widget.New(e,
		widget.WithLogger(log),
		widget.WithBank(engine.BankConfig{
			SoundfontURL: soundfont,
			Instrument:   instrument,
			OnError: func(err error) {
				log.Error("instrument bank error", zap.Error(err))
			},
		}),
		widget.WithReloadDebounce(constants.GetReloadDebounce()),
	)
}
