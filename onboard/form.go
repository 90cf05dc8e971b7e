package onboard

import (
	"strconv"
	"strings"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/config"
)

// DefaultPort is used when the connect form leaves the port blank.
const DefaultPort = 5432

// ConnectForm is the step 1 input. Every field but Port is required.
type ConnectForm struct {
	DBType   string
	Database string
	Username string
	Password string
	Host     string
	Port     string
}

// FormFromConnection fills a form from a saved profile.
func FormFromConnection(c config.Connection) ConnectForm {
	return ConnectForm{
		DBType:   c.DBType,
		Database: c.Database,
		Username: c.Username,
		Password: c.Password,
		Host:     c.Host,
		Port:     c.Port,
	}
}

// Connection converts the form to a profile named name. The password is
// kept only when savePassword is set.
func (f ConnectForm) Connection(name string, savePassword bool) config.Connection {
	c := config.Connection{
		Name:     name,
		DBType:   f.DBType,
		Host:     f.Host,
		Port:     f.Port,
		Username: f.Username,
		Database: f.Database,
	}
	if savePassword {
		c.Password = f.Password
	}
	return c
}

// Request validates the form and builds the /connect-db body.
func (f ConnectForm) Request() (api.ConnectRequest, error) {
	trim := strings.TrimSpace
	if trim(f.DBType) == "" || trim(f.Database) == "" || trim(f.Username) == "" ||
		f.Password == "" || trim(f.Host) == "" {
		return api.ConnectRequest{}, apperr.Validation("Please fill in all required fields.")
	}

	port := DefaultPort
	if p := trim(f.Port); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return api.ConnectRequest{}, apperr.Newf(apperr.KindValidation, "invalid port %q", f.Port)
		}
		port = n
	}

	return api.ConnectRequest{
		DBType:   trim(f.DBType),
		Database: trim(f.Database),
		Username: trim(f.Username),
		Password: f.Password,
		Host:     trim(f.Host),
		Port:     port,
	}, nil
}
