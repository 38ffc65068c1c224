package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the modem TCP service using DNS-SD
 *
 * Description:
 *
 *     Most people have typed in enough IP addresses and ports by now, and
 *     would rather just select an available modem that is automatically
 *     discovered on the local network.
 */

import (
	"context"
	"fmt"
	"os"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNSSDService = "_softmodem._tcp"

// DefaultServiceName is "Softmodem on <hostname>".
func DefaultServiceName() string {
	var host, err = os.Hostname()
	if err != nil || host == "" {
		return "Softmodem"
	}

	return "Softmodem on " + host
}

// Announce advertises port under name until ctx is cancelled. An empty name
// means DefaultServiceName.
func Announce(ctx context.Context, name string, port int, logger *log.Logger) error {
	if name == "" {
		name = DefaultServiceName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNSSDService,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("dns-sd: create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("dns-sd: create responder: %w", rpErr)
	}

	var _, addErr = rp.Add(sv)
	if addErr != nil {
		return fmt.Errorf("dns-sd: add service: %w", addErr)
	}

	logger.Info("dns-sd announcing", "name", name, "type", DNSSDService, "port", port)

	var respondErr = rp.Respond(ctx)
	if respondErr != nil && ctx.Err() == nil {
		return fmt.Errorf("dns-sd: responder: %w", respondErr)
	}

	return nil
}
