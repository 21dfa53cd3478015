package config

// ExampleConfig is a starting point for configs/config.json.
const ExampleConfig = `{
    "email_settings": {
        "smtp_server": "smtp.example.com",
        "smtp_port": 25,
        "sender_email": "fgtprov@example.com",
        "subject": "FortiGate address provisioning report",
        "username": "",
        "password": ""
    },
    "api_throttle": {
        "enabled": true,
        "interval": 1
    },
    "logging": {
        "enabled": true,
        "level": "INFO",
        "log_file": "logs/fgtprov_%Y%m%d.log"
    },
    "report": {
        "directory": "reports"
    },
    "history": {
        "enabled": false,
        "driver": "sqlite3",
        "dsn": "data/history.db"
    },
    "last_script_run": ""
}
`

// ExampleInventory is a starting point for configs/firewalls.json.
const ExampleInventory = `{
    "firewalls": [
        {
            "name": "FW-EDGE-01",
            "ip": "192.0.2.10",
            "api_token": "replace-with-rest-api-token",
            "vdoms": ["root", "dmz"]
        }
    ]
}
`
