// Copyright 2026 Confsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package targeting resolves the declared host identity into the targeting
// value sent with every subscription request. The remote service uses it to
// select a configuration release cohort.
package targeting

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/logger"
)

// ErrInvalidHostSpec indicates a host identity that cannot be resolved.
// The daemon must not start with one.
var ErrInvalidHostSpec = errors.New("invalid host spec")

// Value is the resolved targeting value. The zero value means "no targeting":
// the subscription requests carry no cohort selector.
type Value string

// None is the absent targeting value.
const None Value = ""

// Resolve converts the declared host identity into a targeting value.
// Resolution happens once at startup; the result is shared read-only by all
// watch loops.
func Resolve(host *config.HostConfig) (Value, error) {
	if host == nil {
		return None, nil
	}

	log := logger.For(logger.ComponentTargeting)

	switch host.Type {
	case config.HostTypeHostName:
		hostname, err := os.Hostname()
		if err != nil {
			return None, fmt.Errorf("failed to determine hostname: %w", err)
		}
		return Value(hostname), nil

	case config.HostTypeHostCidr:
		_, block, err := net.ParseCIDR(host.CIDR)
		if err != nil {
			return None, fmt.Errorf("%w: bad CIDR %q: %v", ErrInvalidHostSpec, host.CIDR, err)
		}

		addr, found := localAddrInBlock(block)
		if !found {
			// Resolution mechanics are best-effort: only bad syntax is fatal.
			log.Warnf("No local interface address within %s, falling back to loopback", host.CIDR)
			return Value("127.0.0.1"), nil
		}
		return Value(addr), nil

	case config.HostTypeCustom:
		return Value(host.Custom), nil

	default:
		return None, fmt.Errorf("%w: unknown host type %q", ErrInvalidHostSpec, host.Type)
	}
}

// localAddrInBlock returns the first local interface address inside block.
func localAddrInBlock(block *net.IPNet) (string, bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", false
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if block.Contains(ipNet.IP) {
			return ipNet.IP.String(), true
		}
	}

	return "", false
}
