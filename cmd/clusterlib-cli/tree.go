package main

import (
	"fmt"
	"time"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
)

// materialize creates every application/group/node named in cfg against
// factory and starts an always-healthy Server for each node, so the CLI
// demonstrates the full Factory -> Application -> Group -> Node path
// rather than just exercising bare CreateNode calls.
func materialize(factory *clusterlib.FactoryOps, cfg *Config) ([]*clusterlib.Server, error) {
	var servers []*clusterlib.Server

	healthy := time.Duration(cfg.HealthCheck.HealthyIntervalMs) * time.Millisecond
	unhealthy := time.Duration(cfg.HealthCheck.UnhealthyIntervalMs) * time.Millisecond
	if healthy <= 0 {
		healthy = 2 * time.Second
	}
	if unhealthy <= 0 {
		unhealthy = 500 * time.Millisecond
	}

	for _, appCfg := range cfg.Applications {
		app, err := factory.Root().Application(appCfg.Name, true)
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", appCfg.Name, err)
		}
		for _, groupCfg := range appCfg.Groups {
			group, err := app.Group(groupCfg.Name, true)
			if err != nil {
				return nil, fmt.Errorf("group %s/%s: %w", appCfg.Name, groupCfg.Name, err)
			}
			for _, nodeName := range groupCfg.Nodes {
				node, err := group.Node(nodeName, true)
				if err != nil {
					return nil, fmt.Errorf("node %s/%s/%s: %w", appCfg.Name, groupCfg.Name, nodeName, err)
				}
				srv, err := clusterlib.NewServer(factory, node, alwaysHealthy, healthy, unhealthy)
				if err != nil {
					return nil, fmt.Errorf("server for %s: %w", node.Key(), err)
				}
				servers = append(servers, srv)
			}
		}
	}
	return servers, nil
}

func alwaysHealthy() (bool, string) {
	return true, "clusterlib-cli"
}

// printTree walks the Root and prints the Application/Group/Node tree.
func printTree(factory *clusterlib.FactoryOps) {
	root := factory.Root()
	apps, err := root.Applications()
	if err != nil {
		fmt.Printf("tree: %v\n", err)
		return
	}
	if len(apps) == 0 {
		fmt.Println("(empty tree)")
		return
	}
	for _, appName := range apps {
		fmt.Printf("%s/\n", appName)
		app, err := root.Application(appName, false)
		if err != nil || app == nil {
			continue
		}
		groups, err := app.Groups()
		if err != nil {
			continue
		}
		for _, groupName := range groups {
			fmt.Printf("  %s/\n", groupName)
			group, err := app.Group(groupName, false)
			if err != nil || group == nil {
				continue
			}
			nodes, err := group.Nodes()
			if err != nil {
				continue
			}
			for _, nodeName := range nodes {
				node, err := group.Node(nodeName, false)
				if err != nil || node == nil {
					fmt.Printf("    %s\n", nodeName)
					continue
				}
				fmt.Printf("    %s  [%s]\n", nodeName, node.ClientState())
			}
		}
	}
}
