package server

import "html/template"

// consoleSeed preselects what the console page joins on load.
type consoleSeed struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	Name        string `json:"name"`
	AsHost      bool   `json:"as_host"`
}

type consolePage struct {
	Seed consoleSeed
}

// formsPage selects which entry forms a page shows.
type formsPage struct {
	Title    string
	ShowHost bool
	ShowJoin bool
}

var (
	consoleTemplate = template.Must(template.New("console").Parse(consoleHTML))
	formsTemplate   = template.Must(template.New("forms").Parse(formsHTML))
)

const formsHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        form { border: 1px solid #ccc; padding: 10px; margin: 10px 0; max-width: 420px; }
        input[type="text"] { width: 260px; padding: 5px; margin: 4px 0; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    {{if .ShowHost}}
    <form method="post" action="/host">
        <h2>Host a session</h2>
        <input type="text" name="session_name" placeholder="Planning Poker"><br>
        <button type="submit">Create</button>
    </form>
    {{end}}
    {{if .ShowJoin}}
    <form method="post" action="/join">
        <h2>Join a session</h2>
        <input type="text" name="session_id" placeholder="Session id" required><br>
        <input type="text" name="name" placeholder="Your name"><br>
        <button type="submit">Join</button>
    </form>
    {{end}}
    <p><a href="/test">Protocol console</a></p>
</body>
</html>`

const consoleHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{if .Seed.SessionName}}{{.Seed.SessionName}}{{else}}Planning Poker{{end}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 240px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
            margin: 2px;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .item { border: 1px solid #ddd; padding: 8px; margin: 6px 0; }
    </style>
</head>
<body>
    <h1 id="title">Planning Poker</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="nameInput" placeholder="Your name">
        <input type="text" id="sessionInput" placeholder="Session id (empty creates one)">
        <label><input type="checkbox" id="hostInput"> host</label>
        <button id="joinButton" onclick="join()">Join</button>
    </div>

    <div>
        <input type="text" id="titleInput" placeholder="Item title">
        <input type="text" id="descriptionInput" placeholder="Description">
        <button onclick="addItem()">Add item</button>
        <button onclick="toggleReveal()">Toggle reveal</button>
    </div>

    <div id="clients"></div>
    <div id="items"></div>
    <div id="log"></div>

    <script>
        const seed = {{.Seed}};
        const deck = ["0", "1", "2", "3", "5", "8", "13", "?"];
        let ws = null;
        let state = { sessionId: "", clientId: "", reveal: false, clients: {}, items: [] };

        document.getElementById('nameInput').value = seed.name || '';
        document.getElementById('sessionInput').value = seed.session_id || '';
        document.getElementById('hostInput').checked = !!seed.as_host;
        if (seed.session_name) {
            document.getElementById('title').textContent = seed.session_name;
        }

        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            const logDiv = document.getElementById('log');
            logDiv.appendChild(el);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function send(type, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                log('not connected');
                return;
            }
            const frame = JSON.stringify({ type: type, payload: payload });
            ws.send(frame);
            log('> ' + frame);
        }

        function updateStatus(connected) {
            const statusDiv = document.getElementById('status');
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
        }

        function render() {
            const clients = document.getElementById('clients');
            clients.textContent = 'Clients: ' + Object.values(state.clients).map(c => c.name).join(', ');

            const items = document.getElementById('items');
            items.textContent = '';
            state.items.forEach(item => {
                const box = document.createElement('div');
                box.className = 'item';
                const heading = document.createElement('strong');
                heading.textContent = item.title + (item.description ? ' - ' + item.description : '');
                box.appendChild(heading);

                const votes = document.createElement('div');
                const entries = Object.entries(item.votes || {});
                votes.textContent = entries.length + ' vote(s)' + (state.reveal
                    ? ': ' + entries.map(([id, v]) => ((state.clients[id] || {}).name || id) + '=' + JSON.stringify(v)).join(', ')
                    : '');
                box.appendChild(votes);

                deck.forEach(card => {
                    const button = document.createElement('button');
                    button.textContent = card;
                    button.onclick = () => send('vote', {
                        session_id: state.sessionId, item_id: item.id, client_id: state.clientId, vote: card
                    });
                    box.appendChild(button);
                });
                items.appendChild(box);
            });
        }

        function handle(frame) {
            const p = frame.payload || {};
            switch (frame.type) {
            case 'joined':
                state.sessionId = p.session_id;
                state.clientId = p.client_id;
                state.reveal = p.session.reveal;
                state.clients = p.session.clients || {};
                state.items = p.session.items || [];
                document.getElementById('sessionInput').value = p.session_id;
                document.getElementById('title').textContent = p.session.name;
                break;
            case 'client_list':
                state.clients = p.clients || {};
                break;
            case 'item_added':
                state.items.push(p.item);
                break;
            case 'vote_update':
                state.items.filter(i => i.id === p.item_id).forEach(i => { i.votes = p.votes || {}; });
                break;
            case 'reveal_update':
                state.reveal = p.reveal;
                break;
            case 'error':
                log('error: ' + p.message);
                break;
            }
            render();
        }

        function connect(onOpen) {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                updateStatus(true);
                onOpen();
            };
            ws.onmessage = function(event) {
                log('< ' + event.data);
                handle(JSON.parse(event.data));
            };
            ws.onclose = function() {
                updateStatus(false);
                ws = null;
            };
            ws.onerror = function() {
                log('connection error');
            };
        }

        function join() {
            const payload = {
                name: document.getElementById('nameInput').value.trim(),
                session_id: document.getElementById('sessionInput').value.trim(),
                as_host: document.getElementById('hostInput').checked
            };
            if (ws && ws.readyState === WebSocket.OPEN) {
                send('create_or_join', payload);
            } else {
                connect(() => send('create_or_join', payload));
            }
        }

        function addItem() {
            const title = document.getElementById('titleInput').value.trim();
            if (!title) {
                return;
            }
            send('add_item', {
                session_id: state.sessionId,
                title: title,
                description: document.getElementById('descriptionInput').value.trim()
            });
            document.getElementById('titleInput').value = '';
            document.getElementById('descriptionInput').value = '';
        }

        function toggleReveal() {
            send('set_reveal', { session_id: state.sessionId, reveal: !state.reveal });
        }

        if (seed.session_id) {
            join();
        }
    </script>
</body>
</html>`
