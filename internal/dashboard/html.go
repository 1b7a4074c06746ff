package dashboard

const dashboardHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>NutriGoat</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; background: linear-gradient(135deg, #4ade80, #38bdf8); background-clip: text; -webkit-background-clip: text; -webkit-text-fill-color: transparent; }
        .header .status { padding: 0.5rem 1rem; border-radius: 9999px; font-size: 0.875rem; font-weight: 600; }
        .status.running { background: #166534; color: #4ade80; }
        .status.idle { background: #854d0e; color: #fde047; }
        .panel { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; margin: 1rem 2rem; }
        .panel h2 { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 1rem; }
        .cats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 0.5rem; }
        .cats label { font-size: 0.9rem; cursor: pointer; }
        .controls { display: flex; gap: 0.75rem; margin-top: 1rem; align-items: center; }
        button { background: #38bdf8; color: #0f172a; border: 0; border-radius: 8px; padding: 0.5rem 1.25rem; font-weight: 600; cursor: pointer; }
        button.cancel { background: #f87171; }
        button:disabled { opacity: 0.4; cursor: default; }
        select { background: #0f172a; color: #e2e8f0; border: 1px solid #475569; border-radius: 8px; padding: 0.45rem; }
        .bar { height: 14px; background: #0f172a; border-radius: 9999px; overflow: hidden; }
        .bar div { height: 100%; width: 0; background: linear-gradient(90deg, #38bdf8, #4ade80); transition: width 0.3s; }
        .meta { display: flex; justify-content: space-between; font-size: 0.85rem; color: #94a3b8; margin-top: 0.5rem; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; margin: 1rem 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.25rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.5rem; }
        .card .value { font-size: 1.75rem; font-weight: 700; color: #f1f5f9; }
        .card.success .value { color: #4ade80; }
        .card.error .value { color: #f87171; }
        .card.warning .value { color: #fbbf24; }
        #log { font-family: ui-monospace, monospace; font-size: 0.8rem; max-height: 360px; overflow-y: auto; }
        #log div { padding: 0.2rem 0; border-bottom: 1px solid #1e293b; }
        #log .info { color: #cbd5e1; }
        #log .success { color: #4ade80; }
        #log .warning { color: #fbbf24; }
        #log .error { color: #f87171; }
        #log .system { color: #38bdf8; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
        .footer a { color: #64748b; }
    </style>
</head>
<body>
    <div class="header">
        <h1>NutriGoat</h1>
        <span class="status idle" id="status">idle</span>
    </div>
    <div class="panel">
        <h2>Categorias</h2>
        <div class="cats" id="cats"></div>
        <div class="controls">
            <select id="mode"><option value="test">test</option><option value="full">full</option></select>
            <button id="start">Iniciar coleta</button>
            <button id="cancel" class="cancel" disabled>Cancelar</button>
        </div>
    </div>
    <div class="panel">
        <h2>Progresso</h2>
        <div class="bar"><div id="bar"></div></div>
        <div class="meta"><span id="current">-</span><span id="eta"></span></div>
    </div>
    <div class="grid">
        <div class="card success"><div class="label">Coletados</div><div class="value" id="successes">0</div></div>
        <div class="card error"><div class="label">Falhas</div><div class="value" id="failures">0</div></div>
        <div class="card warning"><div class="label">Já existentes</div><div class="value" id="already_existing">0</div></div>
        <div class="card"><div class="label">Categorias</div><div class="value" id="categories_processed">0</div></div>
        <div class="card"><div class="label">s / produto</div><div class="value" id="avg_seconds_per_product">0</div></div>
    </div>
    <div class="panel"><h2>Eventos</h2><div id="log"></div></div>
    <div class="footer"><a href="/api/export.xlsx">Exportar XLSX</a> · <a href="/api/export.csv">Exportar CSV</a></div>
    <script>
        const $ = id => document.getElementById(id);
        function setState(state) {
            $('status').textContent = state;
            $('status').className = 'status ' + state;
            $('start').disabled = state === 'running';
            $('cancel').disabled = state !== 'running';
        }
        function setStats(s) {
            if (!s) return;
            ['successes','failures','already_existing','categories_processed','avg_seconds_per_product'].forEach(k => {
                if (s[k] !== undefined) $(k).textContent = s[k];
            });
        }
        function log(ev) {
            const line = document.createElement('div');
            line.className = ev.type;
            line.textContent = new Date(ev.timestamp).toLocaleTimeString() + '  ' + ev.message;
            $('log').prepend(line);
        }
        async function loadCategories() {
            const r = await fetch('/api/categories');
            const cats = await r.json();
            $('cats').innerHTML = '';
            cats.forEach(c => {
                const l = document.createElement('label');
                l.innerHTML = '<input type="checkbox" value="' + c.id + '"> ' + c.name;
                $('cats').appendChild(l);
            });
        }
        async function refresh() {
            try {
                const r = await fetch('/api/status');
                const d = await r.json();
                setState(d.state);
                const run = d.current || d.last;
                if (run) { setStats(run.stats); $('bar').style.width = run.progress + '%'; }
            } catch (e) {}
        }
        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events');
            ws.onmessage = m => {
                const ev = JSON.parse(m.data);
                log(ev);
                if (ev.progress !== undefined) $('bar').style.width = ev.progress + '%';
                if (ev.product || ev.category) $('current').textContent = [ev.category, ev.product].filter(Boolean).join(' / ');
                $('eta').textContent = ev.eta ? 'restante ~' + ev.eta : '';
                setStats(ev.stats);
                if (ev.type === 'system') refresh();
            };
            ws.onclose = () => setTimeout(connect, 2000);
        }
        $('start').onclick = async () => {
            const ids = [...document.querySelectorAll('#cats input:checked')].map(i => i.value);
            const r = await fetch('/api/collect', { method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({ mode: $('mode').value, categories: ids }) });
            const d = await r.json();
            if (!r.ok) log({ type: 'error', message: d.error, timestamp: new Date().toISOString() });
            refresh();
        };
        $('cancel').onclick = async () => { await fetch('/api/collect/cancel', { method: 'POST' }); refresh(); };
        loadCategories();
        connect();
        setInterval(refresh, 5000);
        refresh();
    </script>
</body>
</html>`
