package leaseserver

import "fmt"

func getStartupInfo(cfg []*Config) string {
	s := ""

	for _, c := range cfg {
		s += fmt.Sprintf("\t%s leasing %s (%d addresses, lease time %s)\n", c.Addr, c.PoolStart, c.PoolSize, c.LeaseTime)
	}

	if s != "" {
		s = "Serving the following pools\n" + s
	}

	return s
}
