package engine

import (
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// PortSender opens the named MIDI output port of the registered driver.
// The returned func closes the port.
func PortSender(name string) (Sender, func() error, error) {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not find midi output %q", name)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open midi output %q", name)
	}
	return send, out.Close, nil
}

// OutPorts lists the output port names of the registered driver.
func OutPorts() []string {
	var res []string
	for _, out := range gomidi.GetOutPorts() {
		res = append(res, out.String())
	}
	return res
}
