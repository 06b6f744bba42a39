package sqlinline

const QEnsureDownloadJobs = `--sql bae41051-0697-4298-baf7-6df292dafd54
create table if not exists download_jobs (
    id             text primary key,
    translation    text not null,
    mode           text not null,
    speed          text not null,
    status         text not null,
    completed      integer not null default 0,
    total          integer not null default 0,
    error_count    integer not null default 0,
    message        text not null default '',
    created_at     timestamptz not null,
    finished_at    timestamptz
);
`

const QInsertDownloadJob = `--sql af7ea094-435e-4c1a-9b51-b44fb28df7b2
insert into download_jobs (id, translation, mode, speed, status, completed, total, error_count, message, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
on conflict (id) do nothing;
`

const QFinishDownloadJob = `--sql 775776c9-e351-42ac-9092-a6d15e351e40
update download_jobs
set status = $2,
    completed = $3,
    total = $4,
    error_count = $5,
    message = $6,
    finished_at = $7
where id = $1;
`

const QListRecentDownloadJobs = `--sql 48810565-314e-4506-b458-6e50ce22b9ba
select id, translation, mode, speed, status, completed, total, error_count, message, created_at, finished_at
from download_jobs
order by created_at desc
limit $1;
`
