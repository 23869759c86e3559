// Package wizard collects run settings interactively and merges them with
// the previously saved configuration.
package wizard

import (
	"fmt"

	"github.com/gnomegl/teleinvite/internal/config"
)

// Preset keys, answered by TG_<KEY> environment variables.
const (
	KeyAddMore       = "wanted_to_add_more_client"
	KeyAreYouSure    = "are_you_sure"
	KeySessionName   = "current_session_name"
	KeyUpdateAPI     = "update_api_configurations"
	KeyAPIID         = "api_id"
	KeyAPIHash       = "api_hash"
	KeyUpdateGroup   = "update_group"
	KeyGroupID       = "invite_group_id"
	KeyUseProxy      = "want_to_use_proxy"
	KeyProxyUseOld   = "proxy_use_old"
	KeyProxyProtocol = "proxy_protocol"
	KeyProxyHost     = "proxy_host"
	KeyProxyPort     = "proxy_port"
	KeyUseThisClient = "want_to_use_this_client"
	KeyPhoneNumber   = "phone_number"
	KeyCode          = "code"
	KeyPassword      = "password"
)

type Asker interface {
	Preset(key string) bool
	String(key, message string) (string, error)
	Confirm(key, message string) (bool, error)
	Int(key, message string) (int, error)
	Int64(key, message string) (int64, error)
}

type Warner interface {
	Warning(format string, args ...any)
}

// Run asks for the settings of this run. saved may be nil. The returned
// config is a fresh value; saved is not modified.
func Run(ask Asker, out Warner, saved *config.Config) (*config.Config, error) {
	if saved == nil {
		saved = &config.Config{}
	}
	cfg := &config.Config{ExcludeUserIDs: saved.ExcludeUserIDs}

	clients, err := askClients(ask, out)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		if len(saved.Clients) == 0 {
			return nil, fmt.Errorf("no saved clients found, add at least one client")
		}
		clients = append(clients, saved.Clients...)
	}
	cfg.Clients = clients

	if cfg.API, err = askAPI(ask, saved.API); err != nil {
		return nil, err
	}
	if cfg.Group, err = askGroup(ask, saved.Group); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = askProxy(ask, saved.Proxy); err != nil {
		return nil, err
	}

	return cfg, nil
}

func askClients(ask Asker, out Warner) ([]config.Client, error) {
	out.Warning("Add more clients. The old one will be removed, so if you want to use old sessions, skip this step (n).")
	sure, err := ask.Confirm(KeyAreYouSure, "Are you sure? (y/n) ")
	if err != nil || !sure {
		return nil, err
	}

	var clients []config.Client
	seen := make(map[string]bool)
	for {
		name, err := ask.String(KeySessionName, "Enter session name (<your_name>): ")
		if err != nil {
			return nil, err
		}
		if err := config.ValidateSessionName(name); err != nil {
			if ask.Preset(KeySessionName) {
				return nil, err
			}
			out.Warning("%v", err)
			continue
		}
		if seen[name] {
			// A repeated name can only keep repeating when it comes from a
			// preset, so stop here.
			if ask.Preset(KeySessionName) {
				break
			}
			out.Warning("Session %q was already added", name)
		} else {
			seen[name] = true
			clients = append(clients, config.Client{SessionName: name})
		}

		more, err := ask.Confirm(KeyAddMore, "Would you like to add more clients? (y/n): ")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return clients, nil
}

func askAPI(ask Asker, saved *config.API) (*config.API, error) {
	update := ask.Preset(KeyAPIID) && !ask.Preset(KeyUpdateAPI)
	if !update {
		var err error
		update, err = ask.Confirm(KeyUpdateAPI, "Do you want to update API configurations? (y/n) ")
		if err != nil {
			return nil, err
		}
	}
	if !update {
		if saved == nil || saved.APIID == 0 || saved.APIHash == "" {
			return nil, fmt.Errorf("no saved API configuration found")
		}
		api := *saved
		return &api, nil
	}

	id, err := ask.Int(KeyAPIID, "Enter your API ID: ")
	if err != nil {
		return nil, err
	}
	hash, err := ask.String(KeyAPIHash, "Enter your API hash: ")
	if err != nil {
		return nil, err
	}
	return &config.API{APIID: id, APIHash: hash}, nil
}

func askGroup(ask Asker, saved *config.Group) (*config.Group, error) {
	update := ask.Preset(KeyGroupID) && !ask.Preset(KeyUpdateGroup)
	if !update {
		var err error
		update, err = ask.Confirm(KeyUpdateGroup, "Do you want to update the group ID (will be used to invite users to it)? (y/n) ")
		if err != nil {
			return nil, err
		}
	}
	if !update {
		if saved == nil || saved.GroupIDToInvite == 0 {
			return nil, fmt.Errorf("no saved group ID found")
		}
		group := *saved
		return &group, nil
	}

	id, err := ask.Int64(KeyGroupID, "Enter ID of group you want to add members to it: ")
	if err != nil {
		return nil, err
	}
	return &config.Group{GroupIDToInvite: id}, nil
}

// askProxy keeps saved proxy settings in the file even when this run does
// not use them.
func askProxy(ask Asker, saved *config.Proxy) (*config.Proxy, error) {
	use, err := ask.Confirm(KeyUseProxy, "Do you want to use proxy? (y/n) ")
	if err != nil {
		return nil, err
	}
	if !use {
		if saved == nil {
			return nil, nil
		}
		p := *saved
		p.Enabled = false
		return &p, nil
	}

	useOld, err := ask.Confirm(KeyProxyUseOld, "Do you want to use old proxy settings? (y/n) ")
	if err != nil {
		return nil, err
	}
	if useOld {
		if saved == nil || saved.Host == "" {
			return nil, fmt.Errorf("no saved proxy settings found")
		}
		p := *saved
		p.Enabled = true
		return &p, nil
	}

	protocol, err := ask.String(KeyProxyProtocol, "Enter the protocol? (HTTP/SOCKS5) ")
	if err != nil {
		return nil, err
	}
	host, err := ask.String(KeyProxyHost, "Enter the host? ")
	if err != nil {
		return nil, err
	}
	port, err := ask.Int(KeyProxyPort, "Enter the port? ")
	if err != nil {
		return nil, err
	}

	p := &config.Proxy{
		Enabled:  true,
		Protocol: config.ParseProtocol(protocol),
		Host:     host,
		Port:     port,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
